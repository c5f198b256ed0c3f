package turnstile_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/pkg/adapters/memory"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// ExampleNew_library demonstrates how to use Turnstile purely as a Go library,
// with an in-memory store and a generator written as a plain function.
func ExampleNew_library() {
	gen := ports.GeneratorFunc(func(ctx context.Context, req ports.GenerationRequest) (domain.Turn, error) {
		if req.Schema != nil {
			return domain.NewModeSwitchTurn("", domain.Payload{Objective: "summarize"}), nil
		}
		return domain.NewAssistantTurn("Summarize the following text."), nil
	})

	eng, err := turnstile.New(memory.NewStore(), gen)
	if err != nil {
		log.Fatal(err)
	}

	turns, err := eng.Submit(context.Background(), "example", "I need a summarization prompt")
	if err != nil {
		log.Fatal(err)
	}

	for _, turn := range turns {
		fmt.Printf("switch=%v content=%q\n", domain.IsModeSwitch(turn), turn.Content)
	}

	// Output:
	// switch=true content=""
	// switch=false content="Summarize the following text."
}
