package models

import "testing"

func twoTierBounty() *Bounty {
	return &Bounty{
		ID:             "b1",
		CreatorAddress: "0xabcdef0000000000000000000000000000000001",
		Status:         BountyStatusOpen,
		Prizes: []PrizeTier{
			{Rank: 1, Amount: "10"},
			{Rank: 2, Amount: "5"},
		},
	}
}

func TestTierForRank(t *testing.T) {
	b := twoTierBounty()

	tier, ok := b.TierForRank(2)
	if !ok || tier.Amount != "5" {
		t.Fatalf("TierForRank(2) = %v, %t", tier, ok)
	}
	if _, ok := b.TierForRank(3); ok {
		t.Fatal("TierForRank(3) found a tier that was never declared")
	}
}

func TestRankAwarded(t *testing.T) {
	winners := []BountyWinner{{BountyID: "b1", Rank: 1}}

	if !RankAwarded(winners, 1) {
		t.Error("rank 1 should be awarded")
	}
	if RankAwarded(winners, 2) {
		t.Error("rank 2 should not be awarded")
	}
}

func TestAllRanksAwarded(t *testing.T) {
	b := twoTierBounty()

	if b.AllRanksAwarded(nil) {
		t.Error("no winners yet, should not be resolved")
	}
	partial := []BountyWinner{{Rank: 1}}
	if b.AllRanksAwarded(partial) {
		t.Error("one of two ranks filled, should not be resolved")
	}
	full := []BountyWinner{{Rank: 1}, {Rank: 2}}
	if !b.AllRanksAwarded(full) {
		t.Error("both ranks filled, should be resolved")
	}
}

func TestAllRanksAwardedLegacy(t *testing.T) {
	b := &Bounty{ID: "b2", Prize: "3", Status: BountyStatusOpen}

	if b.IsMultiPrize() {
		t.Fatal("legacy bounty misclassified as multi-prize")
	}
	if b.AllRanksAwarded(nil) {
		t.Error("legacy bounty with no winner should not be resolved")
	}
	if !b.AllRanksAwarded([]BountyWinner{{Rank: 1}}) {
		t.Error("legacy bounty resolves with its single winner")
	}
}

func TestIsCreatorCaseInsensitive(t *testing.T) {
	b := &Bounty{CreatorAddress: "0xABCdef0000000000000000000000000000000001"}

	if !b.IsCreator("0xabcdef0000000000000000000000000000000001") {
		t.Error("lowercase address should match")
	}
	if !b.IsCreator("0xABCDEF0000000000000000000000000000000001") {
		t.Error("uppercase address should match")
	}
	if b.IsCreator("0xabcdef0000000000000000000000000000000002") {
		t.Error("different address should not match")
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress("  0xABC  "); got != "0xabc" {
		t.Errorf("NormalizeAddress = %q", got)
	}
}
