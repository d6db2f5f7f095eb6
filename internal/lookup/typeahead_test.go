package lookup

import (
	"context"
	"testing"
)

type gatedSuggester struct {
	entered chan string
	release map[string]chan struct{}
}

func (g *gatedSuggester) SearchSuggestions(_ context.Context, _ DocumentType, partial string) []Suggestion {
	if gate, ok := g.release[partial]; ok {
		g.entered <- partial
		<-gate
	}
	return []Suggestion{{Key: partial + "0001"}}
}

func TestTypeahead_DiscardsStaleResponse(t *testing.T) {
	gate := make(chan struct{})
	sugg := &gatedSuggester{
		entered: make(chan string, 1),
		release: map[string]chan struct{}{"45": gate},
	}
	ta := NewTypeahead(sugg, SalesOrder)

	type outcome struct {
		results []Suggestion
		fresh   bool
	}
	slow := make(chan outcome, 1)
	go func() {
		res, fresh := ta.Suggest(context.Background(), "45")
		slow <- outcome{res, fresh}
	}()
	<-sugg.entered

	res, fresh := ta.Suggest(context.Background(), "450")
	if !fresh {
		t.Fatal("latest request must be fresh")
	}
	if len(res) != 1 || res[0].Key != "4500001" {
		t.Errorf("unexpected results: %v", res)
	}

	close(gate)
	got := <-slow
	if got.fresh {
		t.Error("response to the older keystroke must be reported stale")
	}
	if got.results != nil {
		t.Errorf("stale results must be dropped, got %v", got.results)
	}
}

func TestTypeahead_SequentialCallsAreFresh(t *testing.T) {
	ta := NewTypeahead(&gatedSuggester{}, BillingDocument)

	for _, text := range []string{"9", "90", "900"} {
		res, fresh := ta.Suggest(context.Background(), text)
		if !fresh {
			t.Fatalf("%q: sequential call reported stale", text)
		}
		if len(res) != 1 {
			t.Fatalf("%q: expected 1 result, got %d", text, len(res))
		}
	}
}
