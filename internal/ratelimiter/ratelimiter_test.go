package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		limit     Limit
		wantBurst int
	}{
		{"explicit burst", Limit{RequestsPerSecond: 10, Burst: 20}, 20},
		{"burst defaults to rate", Limit{RequestsPerSecond: 10}, 10},
		{"unlimited", Limit{}, unlimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.limit)
			require.NotNil(t, rl)
			assert.Equal(t, tt.wantBurst, rl.global.Burst())
		})
	}
}

func TestAllow(t *testing.T) {
	rl := New(Limit{RequestsPerSecond: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("EXISTS"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("EXISTS"), "burst exhausted")
}

func TestProcedureLimit(t *testing.T) {
	rl := New(Limit{})
	rl.SetProcedureLimit("ITERATE", Limit{RequestsPerSecond: 1, Burst: 1})

	assert.True(t, rl.Allow("ITERATE"))
	assert.False(t, rl.Allow("ITERATE"))
	assert.True(t, rl.Allow("EXISTS"), "other procedures use only the global bucket")

	rl.SetProcedureLimit("ITERATE", Limit{})
	assert.True(t, rl.Allow("ITERATE"), "unlimited removes the procedure bucket")
}

func TestProcedureRejectionKeepsGlobalToken(t *testing.T) {
	rl := New(Limit{RequestsPerSecond: 1, Burst: 2})
	rl.SetProcedureLimit("ITERATE", Limit{RequestsPerSecond: 1, Burst: 1})

	require.True(t, rl.Allow("ITERATE"))
	require.False(t, rl.Allow("ITERATE"))

	assert.True(t, rl.Allow("EXISTS"), "rejected ITERATE left its global token")
	assert.False(t, rl.Allow("EXISTS"))
}

func TestWait(t *testing.T) {
	rl := New(Limit{RequestsPerSecond: 100, Burst: 1})

	require.NoError(t, rl.Wait(context.Background(), "CREATE"))

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), "CREATE"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitContextCancellation(t *testing.T) {
	rl := New(Limit{RequestsPerSecond: 1, Burst: 1})
	require.True(t, rl.Allow("CREATE"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx, "CREATE")
	assert.Error(t, err)
}

func TestSetLimit(t *testing.T) {
	rl := New(Limit{RequestsPerSecond: 1, Burst: 1})
	require.True(t, rl.Allow("CREATE"))
	require.False(t, rl.Allow("CREATE"))

	rl.SetLimit(Limit{})
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("CREATE"))
	}
}

func TestTokens(t *testing.T) {
	rl := New(Limit{RequestsPerSecond: 1, Burst: 5})
	assert.InDelta(t, 5.0, rl.Tokens(), 0.1)

	rl.Allow("CREATE")
	assert.InDelta(t, 4.0, rl.Tokens(), 0.1)
}

func BenchmarkAllow(b *testing.B) {
	rl := New(Limit{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rl.Allow("EXISTS")
	}
}

func BenchmarkAllowParallel(b *testing.B) {
	rl := New(Limit{})
	rl.SetProcedureLimit("ITERATE", Limit{RequestsPerSecond: 1000})
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rl.Allow("EXISTS")
		}
	})
}
