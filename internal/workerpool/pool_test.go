package workerpool

import (
	"context"
	"testing"
)

func TestResultsPreserveSubmissionOrder(t *testing.T) {
	p := New(4)
	p.Run(context.Background())

	const n = 50
	go func() {
		for i := 0; i < n; i++ {
			seq := i
			p.Submit(Job{Seq: seq, Work: func(ctx context.Context) (any, error) {
				// Every job returns at once; with four workers they can
				// still complete out of submission order, which Results
				// must undo.
				return seq, nil
			}})
		}
		p.Close()
	}()

	want := 0
	for r := range p.Results() {
		if r.Seq != want {
			t.Fatalf("got seq %d, want %d", r.Seq, want)
		}
		if r.Value.(int) != want {
			t.Fatalf("value = %v, want %d", r.Value, want)
		}
		want++
	}
	if want != n {
		t.Fatalf("received %d results, want %d", want, n)
	}
}

func TestPoolClampsSizeToOne(t *testing.T) {
	p := New(0)
	if p.size != 1 {
		t.Errorf("size = %d, want 1", p.size)
	}
}

func TestResultsCarryErrors(t *testing.T) {
	p := New(2)
	p.Run(context.Background())

	go func() {
		p.Submit(Job{Seq: 0, Work: func(ctx context.Context) (any, error) {
			return nil, context.DeadlineExceeded
		}})
		p.Close()
	}()

	r := <-p.Results()
	if r.Err == nil {
		t.Fatal("expected error to propagate through Results")
	}
}
