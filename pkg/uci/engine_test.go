package uci

import "testing"

func TestParseInfoVariationCentipawnScore(t *testing.T) {
	line := "info depth 15 seldepth 20 multipv 1 score cp 34 nodes 12345 pv e2e4 e7e5 g1f3"
	v, rank := parseInfoVariation(line)
	if v == nil {
		t.Fatal("expected a parsed variation")
	}
	if rank != 1 {
		t.Errorf("expected rank 1, got %d", rank)
	}
	if v.Score.Mate {
		t.Error("expected a centipawn score, not mate")
	}
	if v.Score.CP != 34 {
		t.Errorf("expected cp=34, got %d", v.Score.CP)
	}
	wantMoves := []string{"e2e4", "e7e5", "g1f3"}
	if len(v.Moves) != len(wantMoves) {
		t.Fatalf("expected %d moves, got %v", len(wantMoves), v.Moves)
	}
	for i, m := range wantMoves {
		if v.Moves[i] != m {
			t.Errorf("move %d = %s, want %s", i, v.Moves[i], m)
		}
	}
}

func TestParseInfoVariationMateScore(t *testing.T) {
	line := "info depth 10 multipv 2 score mate -3 pv h2h4"
	v, rank := parseInfoVariation(line)
	if v == nil {
		t.Fatal("expected a parsed variation")
	}
	if rank != 2 {
		t.Errorf("expected rank 2, got %d", rank)
	}
	if !v.Score.Mate || v.Score.MateIn != -3 {
		t.Errorf("expected mate in -3, got %+v", v.Score)
	}
}

func TestParseInfoVariationIgnoresNonInfoLines(t *testing.T) {
	if v, rank := parseInfoVariation("bestmove e2e4 ponder e7e5"); v != nil || rank != 0 {
		t.Errorf("expected nil for a non-info line, got %v rank %d", v, rank)
	}
}

func TestCollectVariationsFallsBackToBestMove(t *testing.T) {
	out := collectVariations(map[int]*Variation{}, "e2e4")
	if len(out) != 1 || out[0].Moves[0] != "e2e4" {
		t.Errorf("expected a single fallback variation for e2e4, got %v", out)
	}
}

func TestCollectVariationsSortsByRank(t *testing.T) {
	by := map[int]*Variation{
		2: {Rank: 2, Moves: []string{"d2d4"}},
		1: {Rank: 1, Moves: []string{"e2e4"}},
	}
	out := collectVariations(by, "")
	if len(out) != 2 {
		t.Fatalf("expected 2 variations, got %d", len(out))
	}
	if out[0].Rank != 1 || out[1].Rank != 2 {
		t.Errorf("expected rank-sorted order, got %v then %v", out[0].Rank, out[1].Rank)
	}
}
