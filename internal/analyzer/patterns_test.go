package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/chatlens/chatlens/internal/store"
)

// at builds a message at an absolute local wall-clock time.
func at(platformID string, year int, month time.Month, day, hour, min int, content string) store.ParsedMessage {
	return store.ParsedMessage{
		SenderPlatformID: platformID,
		SenderName:       fixtureName(platformID),
		Timestamp:        time.Date(year, month, day, hour, min, 0, 0, time.Local).Unix(),
		Type:             store.MessageText,
		Content:          content,
	}
}

func TestNightOwl(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		at("u1", 2024, time.March, 1, 2, 0, "still up"),
		at("u1", 2024, time.March, 1, 3, 0, "can't sleep"),
		at("u2", 2024, time.March, 1, 4, 30, "me neither"),
		at("u2", 2024, time.March, 1, 14, 0, "afternoon"),
		at("u3", 2024, time.March, 1, 6, 0, "just missed the window"),
	})

	report, err := NightOwl(context.Background(), st, id, nil)
	if err != nil {
		t.Fatalf("NightOwl failed: %v", err)
	}
	if report.TotalNight != 3 {
		t.Fatalf("TotalNight = %d, want 3", report.TotalNight)
	}
	if top := topItem(t, report.Leaderboard); top.Name != "Alice" || top.Count != 2 {
		t.Errorf("top night owl = %+v", top)
	}
	// Bob sent the final night message of the only night.
	if top := topItem(t, report.LastLights); top.Name != "Bob" || top.Count != 1 {
		t.Errorf("last light = %+v", top)
	}
	// Alice's rate: 2 night messages out of 2 total.
	for _, r := range report.Rates {
		if r.Name == "Alice" && r.Rate != 100.0 {
			t.Errorf("Alice rate = %v, want 100", r.Rate)
		}
		if r.Name == "Bob" && r.Rate != 50.0 {
			t.Errorf("Bob rate = %v, want 50", r.Rate)
		}
	}
	if len(report.HourCounts) != 6 {
		t.Errorf("expected 6 night hour buckets, got %d", len(report.HourCounts))
	}
}

func TestDragonKing(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		// Day 1: Alice 2, Bob 1. Alice crowned.
		at("u1", 2024, time.March, 1, 10, 0, "a"),
		at("u1", 2024, time.March, 1, 11, 0, "b"),
		at("u2", 2024, time.March, 1, 12, 0, "c"),
		// Day 2: Alice 1, Bob 1. Tie crowns the lower member id (Alice).
		at("u1", 2024, time.March, 2, 10, 0, "d"),
		at("u2", 2024, time.March, 2, 11, 0, "e"),
		// Day 3: Bob alone.
		at("u2", 2024, time.March, 3, 10, 0, "f"),
	})

	report, err := DragonKing(context.Background(), st, id, nil)
	if err != nil {
		t.Fatalf("DragonKing failed: %v", err)
	}
	if report.ActiveDays != 3 {
		t.Fatalf("ActiveDays = %d, want 3", report.ActiveDays)
	}
	if top := topItem(t, report.Leaderboard); top.Name != "Alice" || top.Count != 2 {
		t.Errorf("top dragon king = %+v", top)
	}
	for _, r := range report.Rates {
		// Bob won 1 of his 3 active days.
		if r.Name == "Bob" && r.Rate != 33.33 {
			t.Errorf("Bob crown rate = %v, want 33.33", r.Rate)
		}
	}
}

func TestDiving(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		msg("u1", 0, "here"),
		msg("u2", 50, "also here"),
		msg("u1", 100, "still here"),
		msg("u1", 5000, "back from the deep"),
		msg("u2", 6000, "end of stream"),
	})

	report, err := Diving(context.Background(), st, id, nil)
	if err != nil {
		t.Fatalf("Diving failed: %v", err)
	}
	if len(report.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(report.Records))
	}
	// Bob's 5950-second silence outranks Alice's 4900.
	if report.Records[0].Name != "Bob" || report.Records[0].LongestGap != 5950 {
		t.Errorf("top diver = %+v", report.Records[0])
	}
	alice := report.Records[1]
	if alice.LongestGap != 4900 || alice.GapStartTs != fixtureBase+100 || alice.GapEndTs != fixtureBase+5000 {
		t.Errorf("Alice dive = %+v", alice)
	}
	if alice.CurrentSilence != 1000 {
		t.Errorf("Alice current silence = %d, want 1000", alice.CurrentSilence)
	}
}

func TestMonologue(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		msg("u1", 0, "one"),
		msg("u1", 10, "two"),
		msg("u1", 20, "three"),
		msg("u2", 30, "interruption"),
		msg("u1", 40, "short"),
		msg("u1", 50, "run"),
	})

	report, err := Monologue(context.Background(), st, id, nil, MonologueOptions{MinRun: 3})
	if err != nil {
		t.Fatalf("Monologue failed: %v", err)
	}
	if report.TotalMonologs != 1 {
		t.Fatalf("TotalMonologs = %d, want 1", report.TotalMonologs)
	}
	if top := topItem(t, report.Leaderboard); top.Name != "Alice" || top.Count != 1 {
		t.Errorf("top monologuer = %+v", top)
	}
	if top := topItem(t, report.LongestRuns); top.Count != 3 {
		t.Errorf("longest run = %+v", top)
	}
	if report.AvgRunLength != 3.0 {
		t.Errorf("AvgRunLength = %v, want 3", report.AvgRunLength)
	}
}

func TestMention(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		msg("u1", 0, "@Bob are you coming"),
		msg("u2", 10, "yes @Alice"),
		msg("u1", 20, "@Bob @Carol meeting at 3"),
		msg("u3", 30, "no at sign here"),
	})

	report, err := Mention(context.Background(), st, id, nil)
	if err != nil {
		t.Fatalf("Mention failed: %v", err)
	}
	if report.TotalMentions != 4 {
		t.Fatalf("TotalMentions = %d, want 4", report.TotalMentions)
	}
	if top := topItem(t, report.TopMentioners); top.Name != "Alice" || top.Count != 3 {
		t.Errorf("top mentioner = %+v", top)
	}
	if top := topItem(t, report.TopMentioned); top.Name != "Bob" || top.Count != 2 {
		t.Errorf("top mentioned = %+v", top)
	}
	if len(report.TopPairs) == 0 || report.TopPairs[0].FromName != "Alice" || report.TopPairs[0].ToName != "Bob" {
		t.Errorf("top pair = %+v", report.TopPairs)
	}
}

func TestMentionMatchesHistoricalNames(t *testing.T) {
	// Bob renames to Bobby; a later @Bob still resolves to him.
	st, id := newFixture(t, []store.ParsedMessage{
		msg("u2", 0, "hello"),
		{
			SenderPlatformID: "u2",
			SenderName:       "Bobby",
			Timestamp:        fixtureBase + 10,
			Type:             store.MessageText,
			Content:          "new name, who dis",
		},
		msg("u1", 20, "@Bob is that you"),
	})

	report, err := Mention(context.Background(), st, id, nil)
	if err != nil {
		t.Fatalf("Mention failed: %v", err)
	}
	if report.TotalMentions != 1 {
		t.Fatalf("TotalMentions = %d, want 1", report.TotalMentions)
	}
	if report.TopMentioned[0].PlatformID != "u2" {
		t.Errorf("historical name not resolved: %+v", report.TopMentioned)
	}
}

func TestLaugh(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		msg("u1", 0, "hahaha that's great"),
		msg("u1", 10, "LOL"),
		msg("u2", 20, "not funny"),
		msg("u2", 30, "ok lol fine"),
	})

	report, err := Laugh(context.Background(), st, id, nil, []string{"haha", "lol"})
	if err != nil {
		t.Fatalf("Laugh failed: %v", err)
	}
	if report.TotalLaughs != 3 {
		t.Fatalf("TotalLaughs = %d, want 3", report.TotalLaughs)
	}
	if top := topItem(t, report.Leaderboard); top.Name != "Alice" || top.Count != 2 {
		t.Errorf("top laugher = %+v", top)
	}
	for _, r := range report.Rates {
		if r.Name == "Alice" && r.Rate != 100.0 {
			t.Errorf("Alice laugh rate = %v, want 100", r.Rate)
		}
		if r.Name == "Bob" && r.Rate != 50.0 {
			t.Errorf("Bob laugh rate = %v, want 50", r.Rate)
		}
	}
}

func TestLaughEmptyKeywords(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		msg("u1", 0, "haha"),
	})

	report, err := Laugh(context.Background(), st, id, nil, nil)
	if err != nil {
		t.Fatalf("Laugh failed: %v", err)
	}
	if report.TotalLaughs != 0 || len(report.Leaderboard) != 0 {
		t.Errorf("empty keyword list must match nothing: %+v", report)
	}
}

func TestMemeBattle(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		// A real battle: four images, three senders, each within 60s.
		imageMsg("u1", 0),
		imageMsg("u2", 30),
		imageMsg("u3", 60),
		imageMsg("u2", 90),
		// Text ends the burst.
		msg("u1", 100, "ok you win"),
		// A solo stream of images is not a battle.
		imageMsg("u1", 300),
		imageMsg("u1", 320),
		imageMsg("u1", 340),
	})

	report, err := MemeBattle(context.Background(), st, id, nil, MemeBattleOptions{})
	if err != nil {
		t.Fatalf("MemeBattle failed: %v", err)
	}
	if report.TotalBattles != 1 {
		t.Fatalf("TotalBattles = %d, want 1", report.TotalBattles)
	}
	// Bob threw the final volley.
	if top := topItem(t, report.Victors); top.Name != "Bob" {
		t.Errorf("victor = %+v", top)
	}
	if len(report.Participants) != 3 {
		t.Errorf("expected 3 participants, got %+v", report.Participants)
	}
	if len(report.BattleSizes) != 1 || report.BattleSizes[0].Size != 4 {
		t.Errorf("battle sizes = %+v", report.BattleSizes)
	}
}

func TestMemeBattleGapSplitsBursts(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		imageMsg("u1", 0),
		imageMsg("u2", 30),
		// 120s gap exceeds the 60s default; neither half reaches MinSize.
		imageMsg("u3", 150),
		imageMsg("u1", 170),
	})

	report, err := MemeBattle(context.Background(), st, id, nil, MemeBattleOptions{})
	if err != nil {
		t.Fatalf("MemeBattle failed: %v", err)
	}
	if report.TotalBattles != 0 {
		t.Errorf("split bursts counted as battle: %d", report.TotalBattles)
	}
}

func TestCatchphrase(t *testing.T) {
	st, id := newFixture(t, []store.ParsedMessage{
		msg("u1", 0, "banana bread is the best"),
		msg("u1", 10, "banana again"),
		msg("u1", 20, "did someone say banana"),
		msg("u2", 30, "the the the"), // stopword only
	})

	report, err := Catchphrase(context.Background(), st, id, nil, nil, CatchphraseOptions{MinCount: 2})
	if err != nil {
		t.Fatalf("Catchphrase failed: %v", err)
	}
	if len(report.Members) != 1 {
		t.Fatalf("expected 1 member with catchphrases, got %+v", report.Members)
	}
	m := report.Members[0]
	if m.Name != "Alice" || len(m.Phrases) == 0 || m.Phrases[0].Phrase != "banana" || m.Phrases[0].Count != 3 {
		t.Errorf("catchphrase = %+v", m)
	}
	if top := topItem(t, report.Leaderboard); top.Name != "Alice" || top.Count != 3 {
		t.Errorf("leaderboard = %+v", top)
	}
}
