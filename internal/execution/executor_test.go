package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tv-bridge/internal/exchange"
	"tv-bridge/internal/translator"
)

type fakeTradeClient struct {
	position    exchange.Position
	positionErr error
	orderErr    error
	cancelErr   error
	leverageErr error

	calls  []string
	orders []exchange.OrderRequest
}

func (f *fakeTradeClient) FetchPosition(ctx context.Context, symbol string) (exchange.Position, error) {
	f.calls = append(f.calls, "FetchPosition")
	return f.position, f.positionErr
}

func (f *fakeTradeClient) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderTicket, error) {
	f.calls = append(f.calls, "PlaceOrder")
	f.orders = append(f.orders, req)
	if f.orderErr != nil {
		return exchange.OrderTicket{}, f.orderErr
	}
	return exchange.OrderTicket{
		ID:       fmt.Sprintf("order-%d", len(f.orders)),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Status:   "closed",
	}, nil
}

func (f *fakeTradeClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.calls = append(f.calls, "SetLeverage")
	return f.leverageErr
}

func (f *fakeTradeClient) CancelAllOrders(ctx context.Context, symbol string) error {
	f.calls = append(f.calls, "CancelAllOrders")
	return f.cancelErr
}

func flatClient() *fakeTradeClient {
	return &fakeTradeClient{
		position: exchange.Position{Symbol: "BTCUSDT", Side: exchange.PositionSideFlat},
	}
}

func entryIntent(side translator.Side) translator.OrderIntent {
	return translator.OrderIntent{
		Symbol:   "BTCUSDT",
		Side:     side,
		Quantity: 2,
		Leverage: 10,
		Reason:   "signal",
	}
}

func TestExecute_EntryOnFlatPosition(t *testing.T) {
	client := flatClient()
	exec := NewExecutor(client, nil)

	result, err := exec.Execute(context.Background(), entryIntent(translator.SideBuy))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	expected := []string{"SetLeverage", "FetchPosition", "PlaceOrder"}
	if len(client.calls) != len(expected) {
		t.Fatalf("unexpected call sequence: %v", client.calls)
	}
	for i, call := range expected {
		if client.calls[i] != call {
			t.Errorf("call %d mismatch: got %s want %s", i, client.calls[i], call)
		}
	}

	if result.Reversed {
		t.Error("flat position must not report a reversal")
	}
	if len(result.Tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(result.Tickets))
	}
	if client.orders[0].ReduceOnly {
		t.Error("entry order must not be reduce-only")
	}
}

func TestExecute_AutoReverseClosesOppositeFirst(t *testing.T) {
	client := &fakeTradeClient{
		position: exchange.Position{
			Symbol: "BTCUSDT",
			Side:   exchange.PositionSideShort,
			Size:   5,
		},
	}
	exec := NewExecutor(client, nil)

	result, err := exec.Execute(context.Background(), entryIntent(translator.SideBuy))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if !result.Reversed {
		t.Error("expected reversal to be reported")
	}
	if len(client.orders) != 2 {
		t.Fatalf("expected close + entry orders, got %d", len(client.orders))
	}

	closeOrder := client.orders[0]
	if !closeOrder.ReduceOnly {
		t.Error("close order must be reduce-only")
	}
	if closeOrder.Side != "buy" {
		t.Errorf("closing a short requires a buy, got %s", closeOrder.Side)
	}
	if closeOrder.Quantity != 5 {
		t.Errorf("close order must cover full position size 5, got %v", closeOrder.Quantity)
	}

	entry := client.orders[1]
	if entry.ReduceOnly {
		t.Error("entry order must not be reduce-only")
	}
	if entry.Quantity != 2 {
		t.Errorf("expected entry quantity 2, got %v", entry.Quantity)
	}
}

func TestExecute_SameSidePositionNoReversal(t *testing.T) {
	client := &fakeTradeClient{
		position: exchange.Position{
			Symbol: "BTCUSDT",
			Side:   exchange.PositionSideLong,
			Size:   3,
		},
	}
	exec := NewExecutor(client, nil)

	result, err := exec.Execute(context.Background(), entryIntent(translator.SideBuy))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Reversed {
		t.Error("same-side position must not trigger a reversal")
	}
	if len(client.orders) != 1 {
		t.Fatalf("expected single entry order, got %d", len(client.orders))
	}
}

func TestExecute_PositionQueryFailureAbortsEntry(t *testing.T) {
	client := flatClient()
	client.positionErr = errors.New("position endpoint down")
	exec := NewExecutor(client, nil)

	_, err := exec.Execute(context.Background(), entryIntent(translator.SideSell))
	if err == nil {
		t.Fatal("expected error when position query fails")
	}
	if len(client.orders) != 0 {
		t.Errorf("must not place orders blind, got %d orders", len(client.orders))
	}
}

func TestExecute_ReversalCloseFailureAbortsEntry(t *testing.T) {
	client := &fakeTradeClient{
		position: exchange.Position{
			Symbol: "BTCUSDT",
			Side:   exchange.PositionSideShort,
			Size:   5,
		},
		orderErr: errors.New("order rejected"),
	}
	exec := NewExecutor(client, nil)

	_, err := exec.Execute(context.Background(), entryIntent(translator.SideBuy))
	if err == nil {
		t.Fatal("expected error when reversal close fails")
	}
	// 平仓失败后绝不能继续开仓，否则可能双倍持仓。
	if len(client.orders) != 1 {
		t.Errorf("expected only the failed close attempt, got %d orders", len(client.orders))
	}
}

func TestExecute_CloseOnFlatIsNoOp(t *testing.T) {
	client := flatClient()
	exec := NewExecutor(client, nil)

	result, err := exec.Execute(context.Background(), translator.OrderIntent{
		Symbol:     "BTCUSDT",
		ReduceOnly: true,
		Close:      true,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !result.NoOp {
		t.Error("expected no-op result for flat close")
	}
	if len(client.orders) != 0 {
		t.Errorf("flat close must not place orders, got %d", len(client.orders))
	}
	for _, call := range client.calls {
		if call == "CancelAllOrders" {
			t.Error("flat close must not cancel orders")
		}
	}
}

func TestExecute_CloseCancelsRestingOrdersFirst(t *testing.T) {
	client := &fakeTradeClient{
		position: exchange.Position{
			Symbol: "BTCUSDT",
			Side:   exchange.PositionSideLong,
			Size:   4,
		},
	}
	exec := NewExecutor(client, nil)

	result, err := exec.Execute(context.Background(), translator.OrderIntent{
		Symbol:     "BTCUSDT",
		ReduceOnly: true,
		Close:      true,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	expected := []string{"FetchPosition", "CancelAllOrders", "PlaceOrder"}
	if len(client.calls) != len(expected) {
		t.Fatalf("unexpected call sequence: %v", client.calls)
	}
	for i, call := range expected {
		if client.calls[i] != call {
			t.Errorf("call %d mismatch: got %s want %s", i, client.calls[i], call)
		}
	}

	if !result.Closed {
		t.Error("expected close to be reported")
	}
	order := client.orders[0]
	if !order.ReduceOnly || order.Side != "sell" || order.Quantity != 4 {
		t.Errorf("expected reduce-only sell of 4, got %+v", order)
	}
}

func TestExecute_CloseCancelFailureAborts(t *testing.T) {
	client := &fakeTradeClient{
		position: exchange.Position{
			Symbol: "BTCUSDT",
			Side:   exchange.PositionSideLong,
			Size:   4,
		},
		cancelErr: errors.New("cancel failed"),
	}
	exec := NewExecutor(client, nil)

	if _, err := exec.Execute(context.Background(), translator.OrderIntent{
		Symbol: "BTCUSDT",
		Close:  true,
	}); err == nil {
		t.Fatal("expected error when order cancellation fails")
	}
	if len(client.orders) != 0 {
		t.Errorf("must not place close order after cancel failure, got %d", len(client.orders))
	}
}

func TestExecute_LeverageFailureAborts(t *testing.T) {
	client := flatClient()
	client.leverageErr = errors.New("leverage rejected")
	exec := NewExecutor(client, nil)

	if _, err := exec.Execute(context.Background(), entryIntent(translator.SideBuy)); err == nil {
		t.Fatal("expected error when leverage setting fails")
	}
	if len(client.orders) != 0 {
		t.Errorf("must not place orders after leverage failure, got %d", len(client.orders))
	}
}
