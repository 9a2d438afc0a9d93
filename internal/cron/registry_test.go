package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	reaper := &stubJob{name: "session-reaper"}
	retention := &stubJob{name: "outbox-retention"}
	registry, err := NewRegistry(reaper, nil, retention)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != reaper || jobs[1] != retention {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if _, err := NewRegistry(&stubJob{name: " "}); err == nil {
		t.Fatalf("expected blank name error")
	}
}

func TestRegistryOnly(t *testing.T) {
	registry, _ := NewRegistry(&stubJob{name: "session-reaper"}, &stubJob{name: "outbox-retention"})

	all, err := registry.Only("", " ")
	if err != nil || len(all.Jobs()) != 2 {
		t.Fatalf("empty selection must keep all jobs: %v", err)
	}
	only, err := registry.Only("outbox-retention")
	if err != nil {
		t.Fatalf("only: %v", err)
	}
	if jobs := only.Jobs(); len(jobs) != 1 || jobs[0].Name() != "outbox-retention" {
		t.Fatalf("unexpected selection %v", jobs)
	}
	if _, err := registry.Only("nope"); err == nil {
		t.Fatalf("expected unknown job error")
	}
}
