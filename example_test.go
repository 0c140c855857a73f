package quotakit_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nhalm/quotakit"
)

func ExampleNew() {
	// No Redis configured: counters live in this process only.
	cache, err := quotakit.New(quotakit.Config{})
	if err != nil {
		panic(err)
	}
	defer cache.Shutdown()

	res, err := cache.IncrementUsage(context.Background(), "user-42", "standard", 100)
	if err != nil {
		panic(err)
	}

	fmt.Println(res.Success, res.CurrentCount, res.RemainingCalls)
	// Output: true 1 99
}

func ExampleCache_IncrementUsage_denied() {
	cache, _ := quotakit.New(quotakit.Config{})
	defer cache.Shutdown()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = cache.IncrementUsage(ctx, "user-42", "standard", 3)
	}

	// The fourth call lands past the limit and is denied.
	res, _ := cache.IncrementUsage(ctx, "user-42", "standard", 3)
	fmt.Println(res.Success, res.CurrentCount, res.RemainingCalls)
	// Output: false 3 0
}

func ExampleCache_Middleware() {
	cache, _ := quotakit.New(quotakit.Config{RedisURL: "localhost:6379"})
	defer cache.Shutdown()

	r := chi.NewRouter()

	// Charge 100 daily operations per authenticated user.
	r.Use(cache.Middleware(func(r *http.Request) (string, string, int) {
		return r.Header.Get("X-User-ID"), "standard", 100
	}))

	r.Get("/convert", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func ExampleCache_Routes() {
	cache, _ := quotakit.New(quotakit.Config{})
	defer cache.Shutdown()

	r := chi.NewRouter()

	// Operator endpoints; mount behind internal auth.
	r.Mount("/internal/quota", cache.Routes())
}
