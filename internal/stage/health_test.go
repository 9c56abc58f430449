package stage

import (
	"context"
	"testing"

	"newsflow/internal/queue"
)

func TestHealthConstructors(t *testing.T) {
	ok := Healthy("download")
	if !ok.Ready || ok.Name != "download" || ok.Detail != "" {
		t.Fatalf("unexpected healthy record %+v", ok)
	}
	bad := Unhealthy("publish", "telegram.bot_token missing")
	if bad.Ready || bad.Detail != "telegram.bot_token missing" {
		t.Fatalf("unexpected unhealthy record %+v", bad)
	}
}

func TestFuncAdapter(t *testing.T) {
	var handler Handler = Func(func(_ context.Context, item *queue.Item, prior []byte) ([]byte, error) {
		return append([]byte(item.ID+":"), prior...), nil
	})
	out, err := handler.Execute(context.Background(), &queue.Item{ID: "42"}, []byte("body"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(out) != "42:body" {
		t.Fatalf("unexpected output %q", out)
	}
	if !handler.HealthCheck(context.Background()).Ready {
		t.Fatal("func adapter should report ready")
	}
}
