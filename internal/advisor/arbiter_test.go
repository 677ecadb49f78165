package advisor

import (
	"context"
	"errors"
	"testing"

	"crypto-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockAdvisoryClient is a mock implementation of the AdvisoryClient.
type MockAdvisoryClient struct {
	mock.Mock
}

func (m *MockAdvisoryClient) Rank(ctx context.Context, summary string) (*Decision, error) {
	args := m.Called(ctx, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Decision), args.Error(1)
}

func candidates() []models.Signal {
	return []models.Signal{
		{Token: "SOL", Action: models.ActionBuy, Strength: 72, Reasons: []string{"RSI oversold: 25.0 < 30.0"}},
		{Token: "BTC", Action: models.ActionSell, Strength: 65, Reasons: []string{"take profit: +1.10% above +0.80% target"}},
	}
}

func TestChoose_SingleCandidateSkipsAdvisory(t *testing.T) {
	client := new(MockAdvisoryClient)
	a := NewArbiter(client, true, zap.NewNop())

	only := candidates()[:1]
	chosen := a.Choose(context.Background(), only)

	assert.Equal(t, only[0], chosen)
	client.AssertNotCalled(t, "Rank", mock.Anything, mock.Anything)
}

func TestChoose_AdvisorySelectsCandidate(t *testing.T) {
	client := new(MockAdvisoryClient)
	client.On("Rank", mock.Anything, mock.Anything).Return(&Decision{
		Token:      "BTC",
		Action:     models.ActionSell,
		Confidence: 99,
		Reason:     "profit already on the table",
	}, nil)

	a := NewArbiter(client, true, zap.NewNop())
	chosen := a.Choose(context.Background(), candidates())

	assert.Equal(t, "BTC", chosen.Token)
	assert.Equal(t, models.ActionSell, chosen.Action)
	// Confidence is always the rule-computed strength, never the
	// advisory's number.
	assert.InDelta(t, 65, chosen.Strength, 1e-9)
	assert.Contains(t, chosen.Reasons[len(chosen.Reasons)-1], "advisory:")
	client.AssertExpectations(t)
}

func TestChoose_ActionOverrideIsDiscarded(t *testing.T) {
	client := new(MockAdvisoryClient)
	client.On("Rank", mock.Anything, mock.Anything).Return(&Decision{
		Token:  "BTC",
		Action: models.ActionBuy, // rules said SELL
	}, nil)

	a := NewArbiter(client, true, zap.NewNop())
	chosen := a.Choose(context.Background(), candidates())

	// Token selection stands, but the rule action and strength win.
	assert.Equal(t, "BTC", chosen.Token)
	assert.Equal(t, models.ActionSell, chosen.Action)
	assert.InDelta(t, 65, chosen.Strength, 1e-9)
}

func TestChoose_UnknownTokenFallsBackToStrongest(t *testing.T) {
	client := new(MockAdvisoryClient)
	client.On("Rank", mock.Anything, mock.Anything).Return(&Decision{
		Token:  "DOGE",
		Action: models.ActionBuy,
	}, nil)

	a := NewArbiter(client, true, zap.NewNop())
	chosen := a.Choose(context.Background(), candidates())

	assert.Equal(t, "SOL", chosen.Token)
	assert.InDelta(t, 72, chosen.Strength, 1e-9)
}

func TestChoose_TransportFailureFallsBackToStrongest(t *testing.T) {
	client := new(MockAdvisoryClient)
	client.On("Rank", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	a := NewArbiter(client, true, zap.NewNop())
	chosen := a.Choose(context.Background(), candidates())

	assert.Equal(t, "SOL", chosen.Token)
	assert.Equal(t, models.ActionBuy, chosen.Action)
}

func TestChoose_DisabledAdvisoryIsDeterministic(t *testing.T) {
	a := NewArbiter(nil, true, zap.NewNop())

	chosen := a.Choose(context.Background(), candidates())

	assert.Equal(t, "SOL", chosen.Token)
}

func TestChoose_TieBreaksOnFeedOrder(t *testing.T) {
	a := NewArbiter(nil, false, zap.NewNop())

	tied := []models.Signal{
		{Token: "SOL", Action: models.ActionBuy, Strength: 70},
		{Token: "ETH", Action: models.ActionBuy, Strength: 70},
	}
	chosen := a.Choose(context.Background(), tied)

	assert.Equal(t, "SOL", chosen.Token)
}

func TestBuildSummary_ListsEveryCandidate(t *testing.T) {
	summary := buildSummary(candidates())

	assert.Contains(t, summary, "SOL BUY strength=72")
	assert.Contains(t, summary, "BTC SELL strength=65")
	assert.Contains(t, summary, "RSI oversold")
}
