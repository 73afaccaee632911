package handlers

// Request is implemented by every request type.
type Request interface {
	// GetContainer returns the registry name of the addressed container.
	GetContainer() string
}

func (r *CreateRequest) GetContainer() string   { return r.Container }
func (r *MoveRequest) GetContainer() string     { return r.Container }
func (r *ExistsRequest) GetContainer() string   { return r.Container }
func (r *GetInfoRequest) GetContainer() string  { return r.Container }
func (r *GetValueRequest) GetContainer() string { return r.Container }
func (r *RemoveRequest) GetContainer() string   { return r.Container }
func (r *IterateRequest) GetContainer() string  { return r.Container }
