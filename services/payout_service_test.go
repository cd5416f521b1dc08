package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"bounty-publish-system/models"
	"bounty-publish-system/workers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database with the same schema the
// service migrates in production. TranslateError makes unique-constraint
// failures surface as gorm.ErrDuplicatedKey, matching what isUniqueViolation
// expects.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Bounty{},
		&models.BountyWinner{},
		&models.Submission{},
		&models.SubmissionAttachment{},
		&models.Profile{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// fakeTokenSender records transfers instead of broadcasting them.
type fakeTokenSender struct {
	sent []string // destination addresses, in call order
	err  error
}

func (f *fakeTokenSender) SendToken(_ context.Context, to common.Address, _ *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, models.NormalizeAddress(to.Hex()))
	return fmt.Sprintf("0x%064x", len(f.sent)), nil
}

const (
	testCreator = "0x1111111111111111111111111111111111111111"
	testHunter  = "0x2222222222222222222222222222222222222222"
	testHunter2 = "0x3333333333333333333333333333333333333333"
)

func newPayoutApp(db *gorm.DB, sender TokenSender) *fiber.App {
	app := fiber.New()
	svc := NewPayoutService(db, sender, workers.NewNotifier())
	app.Post("/payout", svc.ExecutePayout)
	return app
}

func seedBounty(t *testing.T, db *gorm.DB, status string, tiers []models.PrizeTier) *models.Bounty {
	t.Helper()
	bounty := &models.Bounty{
		ID:             uuid.NewString(),
		Slug:           "test-bounty",
		Title:          "Test Bounty",
		Description:    "find the bug",
		CreatorAddress: testCreator,
		Status:         status,
		Prizes:         tiers,
		TxHash:         "0x" + uuid.NewString(),
	}
	if err := db.Create(bounty).Error; err != nil {
		t.Fatalf("failed to seed bounty: %v", err)
	}
	return bounty
}

func seedSubmission(t *testing.T, db *gorm.DB, bountyID, hunter string) *models.Submission {
	t.Helper()
	sub := &models.Submission{
		ID:            uuid.NewString(),
		BountyID:      bountyID,
		HunterAddress: hunter,
		Content:       "here is the bug",
		Contact:       "@hunter",
		ContentHash:   models.HashContent("here is the bug", "@hunter"),
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to seed submission: %v", err)
	}
	return sub
}

func postPayout(t *testing.T, app *fiber.App, payload map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/payout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp, decoded
}

func TestExecutePayoutRejectsNonOpenBounty(t *testing.T) {
	for _, status := range []string{models.BountyStatusCancelled, models.BountyStatusPaid} {
		t.Run(status, func(t *testing.T) {
			db := newTestDB(t)
			sender := &fakeTokenSender{}
			app := newPayoutApp(db, sender)

			bounty := seedBounty(t, db, status, []models.PrizeTier{{Rank: 1, Amount: "10"}})
			if status == models.BountyStatusCancelled {
				db.Model(bounty).Update("refund_pending", true)
			}
			sub := seedSubmission(t, db, bounty.ID, testHunter)

			resp, body := postPayout(t, app, map[string]interface{}{
				"bounty_id":       bounty.ID,
				"submission_id":   sub.ID,
				"winner_address":  testHunter,
				"creator_address": testCreator,
				"rank":            1,
			})
			if resp.StatusCode != fiber.StatusConflict {
				t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusConflict)
			}
			if body["message"] != "bounty is not open" {
				t.Errorf("message = %q, want %q", body["message"], "bounty is not open")
			}
			if len(sender.sent) != 0 {
				t.Errorf("funds moved on a %s bounty: %v", status, sender.sent)
			}

			var reloaded models.Bounty
			if err := db.First(&reloaded, "id = ?", bounty.ID).Error; err != nil {
				t.Fatalf("failed to reload bounty: %v", err)
			}
			if reloaded.Status != status {
				t.Errorf("status changed from %s to %s", status, reloaded.Status)
			}
			if status == models.BountyStatusCancelled && !reloaded.RefundPending {
				t.Error("refund_pending flag was cleared")
			}

			var winners int64
			db.Model(&models.BountyWinner{}).Where("bounty_id = ?", bounty.ID).Count(&winners)
			if winners != 0 {
				t.Errorf("winner rows = %d, want 0", winners)
			}
		})
	}
}

func TestExecutePayoutRejectsTakenRank(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeTokenSender{}
	app := newPayoutApp(db, sender)

	bounty := seedBounty(t, db, models.BountyStatusOpen, []models.PrizeTier{
		{Rank: 1, Amount: "10"},
		{Rank: 2, Amount: "5"},
	})
	first := seedSubmission(t, db, bounty.ID, testHunter)
	second := seedSubmission(t, db, bounty.ID, testHunter2)

	if err := db.Create(&models.BountyWinner{
		ID:            uuid.NewString(),
		BountyID:      bounty.ID,
		Rank:          1,
		SubmissionID:  first.ID,
		HunterAddress: testHunter,
		Amount:        "10",
	}).Error; err != nil {
		t.Fatalf("failed to seed winner: %v", err)
	}

	resp, body := postPayout(t, app, map[string]interface{}{
		"bounty_id":       bounty.ID,
		"submission_id":   second.ID,
		"winner_address":  testHunter2,
		"creator_address": testCreator,
		"rank":            1,
	})
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusConflict)
	}
	if body["message"] != "this prize rank has already been awarded" {
		t.Errorf("unexpected message: %q", body["message"])
	}
	if len(sender.sent) != 0 {
		t.Errorf("funds moved for an already-awarded rank: %v", sender.sent)
	}
}

func TestExecutePayoutResolvesOnFinalRank(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeTokenSender{}
	app := newPayoutApp(db, sender)

	bounty := seedBounty(t, db, models.BountyStatusOpen, []models.PrizeTier{
		{Rank: 1, Amount: "10"},
		{Rank: 2, Amount: "5"},
	})
	first := seedSubmission(t, db, bounty.ID, testHunter)
	second := seedSubmission(t, db, bounty.ID, testHunter2)

	resp, body := postPayout(t, app, map[string]interface{}{
		"bounty_id":       bounty.ID,
		"submission_id":   first.ID,
		"winner_address":  testHunter,
		"creator_address": testCreator,
		"rank":            1,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first award status = %d, body %v", resp.StatusCode, body)
	}

	var mid models.Bounty
	db.First(&mid, "id = ?", bounty.ID)
	if mid.Status != models.BountyStatusOpen {
		t.Errorf("status after partial award = %s, want OPEN", mid.Status)
	}
	if mid.WinnerAddress != testHunter {
		t.Errorf("winner_address = %q, want rank-1 hunter", mid.WinnerAddress)
	}

	var firstSub models.Submission
	db.First(&firstSub, "id = ?", first.ID)
	if !firstSub.IsPublic || firstSub.PrizeWon == nil || *firstSub.PrizeWon != "10" || firstSub.Rank == nil || *firstSub.Rank != 1 {
		t.Errorf("winning submission not marked: public=%t prize=%v rank=%v", firstSub.IsPublic, firstSub.PrizeWon, firstSub.Rank)
	}
	var secondSub models.Submission
	db.First(&secondSub, "id = ?", second.ID)
	if secondSub.IsPublic {
		t.Error("losing submission went public before the bounty resolved")
	}

	resp, body = postPayout(t, app, map[string]interface{}{
		"bounty_id":       bounty.ID,
		"submission_id":   second.ID,
		"winner_address":  testHunter2,
		"creator_address": testCreator,
		"rank":            2,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("final award status = %d, body %v", resp.StatusCode, body)
	}

	var resolved models.Bounty
	db.First(&resolved, "id = ?", bounty.ID)
	if resolved.Status != models.BountyStatusPaid {
		t.Errorf("status after final award = %s, want PAID", resolved.Status)
	}

	var hidden int64
	db.Model(&models.Submission{}).Where("bounty_id = ? AND is_public = ?", bounty.ID, false).Count(&hidden)
	if hidden != 0 {
		t.Errorf("%d submissions still hidden after resolution", hidden)
	}

	if len(sender.sent) != 2 || sender.sent[0] != testHunter || sender.sent[1] != testHunter2 {
		t.Errorf("unexpected transfer log: %v", sender.sent)
	}
}

func TestExecutePayoutLegacySinglePrize(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeTokenSender{}
	app := newPayoutApp(db, sender)

	bounty := seedBounty(t, db, models.BountyStatusOpen, nil)
	db.Model(bounty).Update("prize", "25")
	sub := seedSubmission(t, db, bounty.ID, testHunter)

	resp, body := postPayout(t, app, map[string]interface{}{
		"bounty_id":       bounty.ID,
		"submission_id":   sub.ID,
		"winner_address":  testHunter,
		"creator_address": testCreator,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["prize"] != "25" {
		t.Errorf("prize = %v, want 25", body["prize"])
	}

	var reloaded models.Bounty
	db.First(&reloaded, "id = ?", bounty.ID)
	if reloaded.Status != models.BountyStatusPaid {
		t.Errorf("status = %s, want PAID", reloaded.Status)
	}
	if reloaded.WinnerAddress != testHunter {
		t.Errorf("winner_address = %q, want %q", reloaded.WinnerAddress, testHunter)
	}
}

func TestExecutePayoutRollsBackOnTransferFailure(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeTokenSender{err: fmt.Errorf("insufficient funds for gas")}
	app := newPayoutApp(db, sender)

	bounty := seedBounty(t, db, models.BountyStatusOpen, []models.PrizeTier{{Rank: 1, Amount: "10"}})
	sub := seedSubmission(t, db, bounty.ID, testHunter)

	resp, _ := postPayout(t, app, map[string]interface{}{
		"bounty_id":       bounty.ID,
		"submission_id":   sub.ID,
		"winner_address":  testHunter,
		"creator_address": testCreator,
		"rank":            1,
	})
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusInternalServerError)
	}

	var winners int64
	db.Model(&models.BountyWinner{}).Where("bounty_id = ?", bounty.ID).Count(&winners)
	if winners != 0 {
		t.Errorf("winner row survived a failed transfer: %d rows", winners)
	}

	var reloaded models.Bounty
	db.First(&reloaded, "id = ?", bounty.ID)
	if reloaded.Status != models.BountyStatusOpen {
		t.Errorf("status = %s, want OPEN after rollback", reloaded.Status)
	}
	var reloadedSub models.Submission
	db.First(&reloadedSub, "id = ?", sub.ID)
	if reloadedSub.IsPublic {
		t.Error("submission went public after a failed transfer")
	}
}

func TestWinnerRankUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	bounty := seedBounty(t, db, models.BountyStatusOpen, []models.PrizeTier{{Rank: 1, Amount: "10"}})

	row := func() *models.BountyWinner {
		return &models.BountyWinner{
			ID:            uuid.NewString(),
			BountyID:      bounty.ID,
			Rank:          1,
			SubmissionID:  uuid.NewString(),
			HunterAddress: testHunter,
			Amount:        "10",
		}
	}
	if err := db.Create(row()).Error; err != nil {
		t.Fatalf("first winner insert failed: %v", err)
	}
	err := db.Create(row()).Error
	if err == nil {
		t.Fatal("second winner for the same rank was accepted")
	}
	if !isUniqueViolation(err) {
		t.Errorf("expected a unique violation, got: %v", err)
	}
}
