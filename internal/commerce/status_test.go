package commerce

import "testing"

func TestHappyPathTransitions(t *testing.T) {
	path := []OrderStatus{OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("%s -> %s should be allowed", path[i], path[i+1])
		}
	}
}

func TestCancelFromNonTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderPending, OrderConfirmed, OrderProcessing, OrderShipped} {
		if !CanTransition(s, OrderCancelled) {
			t.Errorf("%s -> CANCELLED should be allowed", s)
		}
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	all := []OrderStatus{OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}
	for _, terminal := range []OrderStatus{OrderDelivered, OrderCancelled} {
		if !terminal.Terminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range all {
			if CanTransition(terminal, to) {
				t.Errorf("%s -> %s should be rejected", terminal, to)
			}
		}
	}
}

func TestNoImplicitTransitions(t *testing.T) {
	cases := []struct{ from, to OrderStatus }{
		{OrderPending, OrderProcessing}, // skips CONFIRMED
		{OrderPending, OrderDelivered},
		{OrderConfirmed, OrderShipped},
		{OrderShipped, OrderConfirmed}, // backwards
		{OrderProcessing, OrderPending},
	}
	for _, c := range cases {
		if CanTransition(c.from, c.to) {
			t.Errorf("%s -> %s should be rejected", c.from, c.to)
		}
	}
}

func TestUnknownStatusHasNoTransitions(t *testing.T) {
	if CanTransition(OrderStatus("BOGUS"), OrderPending) {
		t.Error("unknown status must not transition anywhere")
	}
}
