package services

import (
	"errors"
	"testing"

	"dogschool-platform/models"
)

func TestTopUpBonusPicksHighestSatisfiedTier(t *testing.T) {
	tiers := []models.BalanceTier{
		{Amount: 50, Bonus: 5},
		{Amount: 100, Bonus: 20},
	}
	cases := []struct {
		amount float64
		want   float64
	}{
		{40, 0},
		{50, 5},
		{99, 5},
		{100, 20},
		{120, 20},
		{500, 20},
	}
	for _, tc := range cases {
		if got := topUpBonus(tiers, tc.amount); got != tc.want {
			t.Errorf("topUpBonus(%v) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func setTiers(t *testing.T, tenant *models.Tenant, svc *TenantConfigService, tiers []models.BalanceTier) {
	t.Helper()
	cfg := tenant.Config
	cfg.BalanceTiers = tiers
	if err := svc.ReplaceConfig(tenant.ID, cfg); err != nil {
		t.Fatalf("replace config: %v", err)
	}
}

func TestCreateTransactionTopUpWithBonus(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	config := NewTenantConfigService(db, nil)
	setTiers(t, tenant, config, []models.BalanceTier{{Amount: 100, Bonus: 20}, {Amount: 50, Bonus: 5}})

	user := seedUser(t, db, tenant.ID, "sparer", 10)
	staff := seedUser(t, db, tenant.ID, "kasse", 0)
	notifier := &recordingNotifier{}
	svc := NewTransactionService(db, config, NewAchievementService(db), notifier)

	txn, err := svc.CreateTransaction(tenant.ID, CreateTransactionInput{
		UserID:     user.ID,
		BookedByID: staff.ID,
		Type:       models.TransactionTypeTopUp,
		Amount:     120,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if txn.Amount != 120 || txn.Bonus != 20 {
		t.Fatalf("got amount %.2f bonus %.2f, want 120 / 20", txn.Amount, txn.Bonus)
	}
	if txn.BalanceAfter != 150 {
		t.Fatalf("balance after %.2f, want 10+120+20", txn.BalanceAfter)
	}

	var fresh models.User
	if err := db.First(&fresh, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.Balance != 150 {
		t.Fatalf("stored balance %.2f, want 150", fresh.Balance)
	}
	if len(notifier.byCategory(NotifyCategoryBalance)) != 1 {
		t.Fatal("expected one balance notification")
	}
}

func TestCreateTransactionNoBonusBelowTier(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	config := NewTenantConfigService(db, nil)
	setTiers(t, tenant, config, []models.BalanceTier{{Amount: 100, Bonus: 20}, {Amount: 50, Bonus: 5}})
	user := seedUser(t, db, tenant.ID, "klein", 0)
	svc := NewTransactionService(db, config, NewAchievementService(db), LogNotifier{})

	txn, err := svc.CreateTransaction(tenant.ID, CreateTransactionInput{
		UserID: user.ID,
		Type:   models.TransactionTypeTopUp,
		Amount: 40,
	})
	if err != nil {
		t.Fatal(err)
	}
	if txn.Bonus != 0 || txn.BalanceAfter != 40 {
		t.Fatalf("got bonus %.2f balance %.2f, want 0 / 40", txn.Bonus, txn.BalanceAfter)
	}
}

func TestCreateTransactionBonusOnlyForTopUps(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	config := NewTenantConfigService(db, nil)
	setTiers(t, tenant, config, []models.BalanceTier{{Amount: 50, Bonus: 5}})
	user := seedUser(t, db, tenant.ID, "korrektur", 0)
	svc := NewTransactionService(db, config, NewAchievementService(db), LogNotifier{})

	txn, err := svc.CreateTransaction(tenant.ID, CreateTransactionInput{
		UserID:      user.ID,
		Type:        "Korrektur",
		Description: "Gutschrift nach Reklamation",
		Amount:      100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if txn.Bonus != 0 {
		t.Fatalf("non-top-up got bonus %.2f", txn.Bonus)
	}
	if txn.BalanceAfter != 100 {
		t.Fatalf("balance after %.2f, want 100", txn.BalanceAfter)
	}
}

func TestCreateTransactionDebitBelowZero(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	config := NewTenantConfigService(db, nil)
	user := seedUser(t, db, tenant.ID, "minus", 30)
	svc := NewTransactionService(db, config, NewAchievementService(db), LogNotifier{})

	_, err := svc.CreateTransaction(tenant.ID, CreateTransactionInput{
		UserID:      user.ID,
		Type:        "Korrektur",
		Description: "Stornogebühr",
		Amount:      -50,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want insufficient funds", err)
	}
	var fresh models.User
	if err := db.First(&fresh, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.Balance != 30 {
		t.Fatalf("balance moved to %.2f on rejected debit", fresh.Balance)
	}
}

func TestCreateTransactionBookedByDefaultsToCustomer(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	config := NewTenantConfigService(db, nil)
	user := seedUser(t, db, tenant.ID, "selbst", 0)
	svc := NewTransactionService(db, config, NewAchievementService(db), LogNotifier{})

	txn, err := svc.CreateTransaction(tenant.ID, CreateTransactionInput{
		UserID: user.ID,
		Type:   models.TransactionTypeTopUp,
		Amount: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	if txn.BookedByID != user.ID {
		t.Fatalf("booked_by %d, want customer %d", txn.BookedByID, user.ID)
	}
}

func TestCreateTransactionWithTrainingTypeRecordsAchievement(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	config := NewTenantConfigService(db, nil)

	// Auto-progress off: a manual entry still records the completion.
	cfg := tenant.Config
	cfg.AutoProgressEnabled = false
	if err := config.ReplaceConfig(tenant.ID, cfg); err != nil {
		t.Fatal(err)
	}

	training := seedTrainingType(t, db, tenant.ID, "Einzelstunde", models.CategoryTraining, 25)
	user := seedUser(t, db, tenant.ID, "manuell", 50)
	svc := NewTransactionService(db, config, NewAchievementService(db), LogNotifier{})

	txn, err := svc.CreateTransaction(tenant.ID, CreateTransactionInput{
		UserID:         user.ID,
		Type:           training.Name,
		Description:    "Nachtrag Einzelstunde",
		Amount:         -25,
		TrainingTypeID: &training.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	var achievement models.Achievement
	err = db.Where("user_id = ? AND training_type_id = ?", user.ID, training.ID).First(&achievement).Error
	if err != nil {
		t.Fatalf("achievement missing: %v", err)
	}
	if achievement.TransactionID == nil || *achievement.TransactionID != txn.ID {
		t.Fatal("achievement not linked to transaction")
	}
}

func TestListTransactionsFilters(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	config := NewTenantConfigService(db, nil)
	alice := seedUser(t, db, tenant.ID, "alice", 0)
	bob := seedUser(t, db, tenant.ID, "bob", 0)
	staff := seedUser(t, db, tenant.ID, "kasse", 0)
	svc := NewTransactionService(db, config, NewAchievementService(db), LogNotifier{})

	for _, in := range []CreateTransactionInput{
		{UserID: alice.ID, BookedByID: staff.ID, Type: models.TransactionTypeTopUp, Amount: 50},
		{UserID: bob.ID, BookedByID: staff.ID, Type: models.TransactionTypeTopUp, Amount: 60},
		{UserID: alice.ID, Type: models.TransactionTypeTopUp, Amount: 10},
	} {
		if _, err := svc.CreateTransaction(tenant.ID, in); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := svc.List(tenant.ID, ListTransactionsOptions{UserID: &alice.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("alice has %d entries, want 2", len(mine))
	}

	booked, err := svc.List(tenant.ID, ListTransactionsOptions{BookedByID: &staff.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(booked) != 2 {
		t.Fatalf("staff booked %d entries, want 2", len(booked))
	}

	all, err := svc.List(tenant.ID, ListTransactionsOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("tenant has %d entries, want 3", len(all))
	}
}
