package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjasonkam/leave-sub000/internal/models"
)

func strPtr(s string) *string { return &s }

func userRef(id string) *Ref  { return &Ref{ID: id, Kind: models.RefUser} }
func groupRef(id string) *Ref { return &Ref{ID: id, Kind: models.RefGroup} }

func decided() *time.Time {
	t := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveWalksConfiguredSlotsInOrder(t *testing.T) {
	tests := []struct {
		name  string
		chain Chain
		want  Stage
	}{
		{
			name:  "all slots empty is completed immediately",
			chain: Chain{},
			want:  StageCompleted,
		},
		{
			name:  "checker first when configured",
			chain: Chain{{Ref: userRef("u1")}, {Ref: userRef("u2")}},
			want:  StageChecker,
		},
		{
			name:  "null slots are skipped",
			chain: Chain{{}, {Ref: userRef("u7")}, {}, {Ref: userRef("u9")}},
			want:  StageApprover1,
		},
		{
			name:  "decided slots advance the stage",
			chain: Chain{{}, {Ref: userRef("u7"), DecidedAt: decided()}, {}, {Ref: userRef("u9")}},
			want:  StageApprover3,
		},
		{
			name: "all configured slots decided is completed",
			chain: Chain{
				{},
				{Ref: userRef("u7"), DecidedAt: decided()},
				{},
				{Ref: userRef("u9"), DecidedAt: decided()},
			},
			want: StageCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.chain))
		})
	}
}

func TestFromApplicationSnapshotsSlots(t *testing.T) {
	kind := string(models.RefUser)
	app := &models.LeaveApplication{
		Approver1RefID:     strPtr("u7"),
		Approver1RefKind:   &kind,
		Approver1DecidedAt: decided(),
		Approver3RefID:     strPtr("u9"),
	}

	chain := FromApplication(app)
	require.NotNil(t, chain[1].Ref)
	assert.Equal(t, "u7", chain[1].Ref.ID)
	assert.NotNil(t, chain[1].DecidedAt)
	assert.Nil(t, chain[0].Ref)
	assert.Nil(t, chain[2].Ref)

	// Missing kind defaults to a direct user reference.
	require.NotNil(t, chain[3].Ref)
	assert.Equal(t, models.RefUser, chain[3].Ref.Kind)

	assert.Equal(t, StageApprover3, Resolve(chain))
}

func TestEligibleDirectAndGroup(t *testing.T) {
	chain := Chain{{Ref: userRef("u1")}, {Ref: groupRef("g1")}}

	assert.True(t, chain.Eligible(StageChecker, Actor{UserID: "u1"}))
	assert.False(t, chain.Eligible(StageChecker, Actor{UserID: "u2"}))

	// Group slots accept any current member.
	assert.True(t, chain.Eligible(StageApprover1, Actor{UserID: "u9", GroupIDs: []string{"g1"}}))
	assert.False(t, chain.Eligible(StageApprover1, Actor{UserID: "u9", GroupIDs: []string{"g2"}}))

	_, ok := chain.SlotAt(StageCompleted)
	assert.False(t, ok)
}

func TestCanApproveOnlyCurrentStage(t *testing.T) {
	chain := Chain{{Ref: userRef("u1")}, {Ref: userRef("u2")}, {Ref: userRef("u3")}}

	assert.True(t, CanApprove(chain, Actor{UserID: "u1"}))
	// A later slot holder may not act while earlier slots are outstanding.
	assert.False(t, CanApprove(chain, Actor{UserID: "u2"}))
	assert.False(t, CanApprove(chain, Actor{UserID: "u3"}))

	chain[0].DecidedAt = decided()
	assert.False(t, CanApprove(chain, Actor{UserID: "u1"}))
	assert.True(t, CanApprove(chain, Actor{UserID: "u2"}))
}

func TestCanApproveCompletedChain(t *testing.T) {
	assert.False(t, CanApprove(Chain{}, Actor{UserID: "u1"}))
	assert.False(t, CanApprove(Chain{}, Actor{UserID: "u1", HRAuthority: true}))
}

func TestHRAuthorityRejectsButNeverApproves(t *testing.T) {
	chain := Chain{{Ref: userRef("u1"), DecidedAt: decided()}, {Ref: userRef("u2")}}
	hr := Actor{UserID: "hr-1", HRAuthority: true}

	assert.True(t, CanReject(chain, hr))
	assert.False(t, CanApprove(chain, hr))

	// Once the chain is completed there is nothing left to reject.
	chain[1].DecidedAt = decided()
	assert.False(t, CanReject(chain, hr))
}

func TestCanRejectCurrentStageHolder(t *testing.T) {
	chain := Chain{{Ref: userRef("u1")}, {Ref: userRef("u2")}}

	assert.True(t, CanReject(chain, Actor{UserID: "u1"}))
	assert.False(t, CanReject(chain, Actor{UserID: "u2"}))
}

func TestInvolves(t *testing.T) {
	chain := Chain{{Ref: userRef("u1"), DecidedAt: decided()}, {Ref: groupRef("g1")}}

	assert.True(t, Involves(chain, Actor{UserID: "u1"}))
	assert.True(t, Involves(chain, Actor{UserID: "u5", GroupIDs: []string{"g1"}}))
	assert.False(t, Involves(chain, Actor{UserID: "u5"}))
}

func TestWithDecisionAdvancesWithoutMutating(t *testing.T) {
	chain := Chain{{Ref: userRef("u1")}, {Ref: userRef("u2")}}

	next := chain.WithDecision(StageChecker, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	require.Equal(t, StageApprover1, Resolve(next))
	assert.Nil(t, chain[0].DecidedAt)

	final := next.WithDecision(StageApprover1, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, StageCompleted, Resolve(final))
}
