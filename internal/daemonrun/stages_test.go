package daemonrun

import (
	"errors"
	"reflect"
	"testing"

	"newsflow/internal/pipeline"
	"newsflow/internal/queue"
	"newsflow/internal/testsupport"
)

func TestResolveStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cases := []struct {
		name  string
		input []string
		want  []queue.Status
	}{
		{"defaults", nil, []queue.Status{queue.StatusDownloaded, queue.StatusExtracted, queue.StatusTranslated, queue.StatusPublished}},
		{"display names reordered", []string{"Translated", "extracted"}, []queue.Status{queue.StatusExtracted, queue.StatusTranslated}},
		{"comma list", []string{"published,downloaded"}, []queue.Status{queue.StatusDownloaded, queue.StatusPublished}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveStages(cfg, tc.input)
			if err != nil {
				t.Fatalf("ResolveStages: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
	for _, bad := range []string{"new", "rendered"} {
		if _, err := ResolveStages(cfg, []string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBuildDriverWiresEveryStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	statuses, err := ResolveStages(cfg, nil)
	if err != nil {
		t.Fatalf("ResolveStages: %v", err)
	}
	driver, err := BuildDriver(cfg, statuses, nil, nil)
	if err != nil {
		t.Fatalf("BuildDriver: %v", err)
	}
	if len(driver.Stages()) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(driver.Stages()))
	}
	if _, ok := driver.Lookup("Published"); !ok {
		t.Fatal("expected Published stage")
	}

	items := testsupport.MustOpenStore(t, cfg)
	arts := testsupport.MustOpenArtifacts(t, cfg)
	runners := BuildRunners(cfg, driver, items, arts, nil, nil)
	if len(runners) != 4 || runners[0].Edge().From != queue.StatusNew {
		t.Fatalf("unexpected runners %v", runners)
	}
}

func TestBuildDriverRejectsGaps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := BuildDriver(cfg, []queue.Status{queue.StatusDownloaded, queue.StatusTranslated}, nil, nil)
	if !errors.Is(err, pipeline.ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}
}

func TestBuildDriverRequiresCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutCredentials())
	if _, err := BuildDriver(cfg, []queue.Status{queue.StatusTranslated}, nil, nil); err == nil {
		t.Fatal("expected missing llm key to fail")
	}
	if _, err := BuildDriver(cfg, []queue.Status{queue.StatusDownloaded, queue.StatusExtracted}, nil, nil); err != nil {
		t.Fatalf("credential-free stages should build: %v", err)
	}
}
