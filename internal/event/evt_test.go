package event

import "testing"

func TestEvt_DeliveryOrder(t *testing.T) {
	var e Evt[int]
	var got []int

	e.On(func(v int) { got = append(got, v*10) })
	e.On(func(v int) { got = append(got, v*100) })

	e.Trigger(1)
	e.Trigger(2)

	want := []int{10, 100, 20, 200}
	if len(got) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestEvt_Off(t *testing.T) {
	var e Evt[string]
	calls := 0

	h := e.On(func(string) { calls++ })
	e.Trigger("a")
	e.Off(h)
	e.Trigger("b")

	if calls != 1 {
		t.Errorf("expected 1 call after Off, got %d", calls)
	}

	// Unknown handles must be ignored
	e.Off(Handle(999))
}

func TestEvt_OffDuringTrigger(t *testing.T) {
	var e Evt[int]
	var h1 Handle
	second := 0

	h1 = e.On(func(int) { e.Off(h1) })
	e.On(func(int) { second++ })

	// Removing a listener mid-delivery must not skip the rest of the snapshot
	e.Trigger(1)
	if second != 1 {
		t.Fatalf("expected second listener to fire once, got %d", second)
	}

	e.Trigger(2)
	if second != 2 {
		t.Errorf("expected second listener to keep firing, got %d", second)
	}
}

func TestEvt_ZeroValueReady(t *testing.T) {
	var e Evt[struct{}]
	e.Trigger(struct{}{}) // no listeners, no panic
}
