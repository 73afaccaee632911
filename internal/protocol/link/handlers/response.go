package handlers

// ResponseBase is embedded in every link response.
//
// Usage in response types:
//
//	type GetInfoResponse struct {
//	    ResponseBase // Embeds Status field and GetStatus() method
//	    Info link.Info
//	}
type ResponseBase struct {
	// Status is the outcome of the request. Callers must check it before
	// reading any other field.
	Status Status
}

// GetStatus returns the response status.
func (r *ResponseBase) GetStatus() Status {
	return r.Status
}

// Response is implemented by every response type.
type Response interface {
	GetStatus() Status
}
