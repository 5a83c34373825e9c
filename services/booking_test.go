package services

import (
	"errors"
	"testing"
	"time"

	"dogschool-platform/models"
)

func TestBookCapacityThenWaitlist(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	appointment := seedAppointment(t, db, tenant.ID, "Welpenstunde", nil, 2)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	var statuses []string
	for _, name := range []string{"a", "b", "c"} {
		user := seedUser(t, db, tenant.ID, name, 0)
		booking, err := svc.Book(tenant.ID, appointment.ID, user.ID, nil)
		if err != nil {
			t.Fatalf("book %s: %v", name, err)
		}
		statuses = append(statuses, booking.Status)
	}

	want := []string{
		models.BookingStatusConfirmed,
		models.BookingStatusConfirmed,
		models.BookingStatusWaitlist,
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("booking %d: got %s, want %s", i, statuses[i], want[i])
		}
	}
}

func TestBookTwiceConflicts(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	appointment := seedAppointment(t, db, tenant.ID, "Welpenstunde", nil, 5)
	user := seedUser(t, db, tenant.ID, "doppel", 0)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	if _, err := svc.Book(tenant.ID, appointment.ID, user.ID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Book(tenant.ID, appointment.ID, user.ID, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("second book: got %v, want conflict", err)
	}
}

func TestCancelPromotesOldestWaitlisted(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	appointment := seedAppointment(t, db, tenant.ID, "Welpenstunde", nil, 1)
	notifier := &recordingNotifier{}
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), notifier)

	holder := seedUser(t, db, tenant.ID, "holder", 0)
	first := seedUser(t, db, tenant.ID, "first-in-line", 0)
	second := seedUser(t, db, tenant.ID, "second-in-line", 0)

	held, err := svc.Book(tenant.ID, appointment.ID, holder.ID, nil)
	if err != nil || held.Status != models.BookingStatusConfirmed {
		t.Fatalf("holder: %v %s", err, held.Status)
	}
	w1, err := svc.Book(tenant.ID, appointment.ID, first.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	w2, err := svc.Book(tenant.ID, appointment.ID, second.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	setBookingCreatedAt(t, db, w1.ID, base)
	setBookingCreatedAt(t, db, w2.ID, base.Add(time.Minute))

	cancelled, promoted, err := svc.Cancel(tenant.ID, appointment.ID, holder.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.BookingStatusCancelled {
		t.Fatalf("cancelled booking has status %s", cancelled.Status)
	}
	if promoted == nil || promoted.UserID != first.ID {
		t.Fatalf("expected %d promoted, got %+v", first.ID, promoted)
	}

	var still models.Booking
	if err := db.First(&still, w2.ID).Error; err != nil {
		t.Fatal(err)
	}
	if still.Status != models.BookingStatusWaitlist {
		t.Fatalf("second in line should stay waitlisted, got %s", still.Status)
	}

	events := notifier.byCategory(NotifyCategoryBooking)
	promotedNotified := false
	for _, e := range events {
		if e.UserID == first.ID && e.Title == "Platz frei geworden" {
			promotedNotified = true
		}
	}
	if !promotedNotified {
		t.Fatal("promoted user was not notified")
	}
}

func TestCancelWaitlistedPromotesNobody(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	appointment := seedAppointment(t, db, tenant.ID, "Welpenstunde", nil, 1)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	holder := seedUser(t, db, tenant.ID, "holder", 0)
	waiterA := seedUser(t, db, tenant.ID, "waiter-a", 0)
	waiterB := seedUser(t, db, tenant.ID, "waiter-b", 0)
	if _, err := svc.Book(tenant.ID, appointment.ID, holder.ID, nil); err != nil {
		t.Fatal(err)
	}
	wa, err := svc.Book(tenant.ID, appointment.ID, waiterA.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	wb, err := svc.Book(tenant.ID, appointment.ID, waiterB.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	setBookingCreatedAt(t, db, wa.ID, base)
	setBookingCreatedAt(t, db, wb.ID, base.Add(time.Minute))

	_, promoted, err := svc.Cancel(tenant.ID, appointment.ID, waiterA.ID)
	if err != nil {
		t.Fatal(err)
	}
	if promoted != nil {
		t.Fatalf("cancelling a waitlist spot must not promote, got %+v", promoted)
	}

	// Cancelling the cancelled row again is a conflict.
	if _, _, err := svc.Cancel(tenant.ID, appointment.ID, waiterA.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("double cancel: got %v, want conflict", err)
	}
}

func TestRebookReusesRowAndRejoinsQueue(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	appointment := seedAppointment(t, db, tenant.ID, "Welpenstunde", nil, 1)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	holder := seedUser(t, db, tenant.ID, "holder", 0)
	returning := seedUser(t, db, tenant.ID, "returning", 0)

	if _, err := svc.Book(tenant.ID, appointment.ID, holder.ID, nil); err != nil {
		t.Fatal(err)
	}
	original, err := svc.Book(tenant.ID, appointment.ID, returning.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Cancel(tenant.ID, appointment.ID, returning.ID); err != nil {
		t.Fatal(err)
	}

	rebooked, err := svc.Book(tenant.ID, appointment.ID, returning.ID, nil)
	if err != nil {
		t.Fatalf("re-book: %v", err)
	}
	if rebooked.ID != original.ID {
		t.Fatalf("re-book created row %d, want reuse of %d", rebooked.ID, original.ID)
	}
	if rebooked.Status != models.BookingStatusWaitlist {
		t.Fatalf("capacity still taken, re-book should waitlist, got %s", rebooked.Status)
	}
	if rebooked.Attended {
		t.Fatal("re-book must reset attendance")
	}
}

func TestToggleAttendance(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	appointment := seedAppointment(t, db, tenant.ID, "Welpenstunde", nil, 5)
	user := seedUser(t, db, tenant.ID, "dabei", 0)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	booking, err := svc.Book(tenant.ID, appointment.ID, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	toggled, err := svc.ToggleAttendance(tenant.ID, booking.ID)
	if err != nil || !toggled.Attended {
		t.Fatalf("toggle on: err=%v attended=%t", err, toggled != nil && toggled.Attended)
	}
	toggled, err = svc.ToggleAttendance(tenant.ID, booking.ID)
	if err != nil || toggled.Attended {
		t.Fatal("toggle off failed")
	}
}

func TestBillBooking(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	training := seedTrainingType(t, db, tenant.ID, "Einzelstunde", models.CategoryTraining, 25)
	appointment := seedAppointment(t, db, tenant.ID, "Einzeltraining Montag", &training.ID, 5)
	user := seedUser(t, db, tenant.ID, "zahler", 100)
	staff := seedUser(t, db, tenant.ID, "trainerin", 0)
	notifier := &recordingNotifier{}
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), notifier)

	booking, err := svc.Book(tenant.ID, appointment.ID, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	txn, err := svc.BillBooking(tenant.ID, booking.ID, staff.ID)
	if err != nil {
		t.Fatalf("BillBooking: %v", err)
	}
	if txn.Amount != -25 || txn.BalanceAfter != 75 {
		t.Fatalf("got amount %.2f balance %.2f, want -25 / 75", txn.Amount, txn.BalanceAfter)
	}
	if txn.Type != "Einzelstunde" {
		t.Fatalf("transaction type %q, want training type name", txn.Type)
	}
	if txn.Description != models.BillingDescription("Einzeltraining Montag") {
		t.Fatalf("unexpected description %q", txn.Description)
	}
	if txn.BookedByID != staff.ID {
		t.Fatalf("booked_by %d, want %d", txn.BookedByID, staff.ID)
	}

	var fresh models.Booking
	if err := db.First(&fresh, booking.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !fresh.IsBilled {
		t.Fatal("booking not marked billed")
	}

	// Default config has auto-progress on: the completion is recorded with
	// the appointment date.
	var achievement models.Achievement
	err = db.Where("user_id = ? AND training_type_id = ?", user.ID, training.ID).First(&achievement).Error
	if err != nil {
		t.Fatalf("achievement not created: %v", err)
	}
	if !achievement.DateAchieved.Equal(appointment.StartTime) {
		t.Fatalf("achievement dated %v, want appointment start", achievement.DateAchieved)
	}
	if achievement.TransactionID == nil || *achievement.TransactionID != txn.ID {
		t.Fatal("achievement not linked to the transaction")
	}

	// Billing again is a conflict and changes nothing.
	if _, err := svc.BillBooking(tenant.ID, booking.ID, staff.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("second bill: got %v, want conflict", err)
	}
	var billed models.User
	if err := db.First(&billed, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if billed.Balance != 75 {
		t.Fatalf("balance drifted to %.2f after rejected re-bill", billed.Balance)
	}
}

func TestBillBookingPriceOverride(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	training := seedTrainingType(t, db, tenant.ID, "Einzelstunde", models.CategoryTraining, 25)
	appointment := seedAppointment(t, db, tenant.ID, "Aktionstag", &training.ID, 5)
	override := 30.0
	if err := db.Model(appointment).Update("price", override).Error; err != nil {
		t.Fatal(err)
	}
	user := seedUser(t, db, tenant.ID, "zahler", 100)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	booking, err := svc.Book(tenant.ID, appointment.ID, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	txn, err := svc.BillBooking(tenant.ID, booking.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if txn.Amount != -30 {
		t.Fatalf("amount %.2f, want appointment override -30", txn.Amount)
	}
	// Nobody pressed the button: attribution falls back to the customer.
	if txn.BookedByID != user.ID {
		t.Fatalf("booked_by %d, want customer %d", txn.BookedByID, user.ID)
	}
}

func TestBillBookingErrors(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	// No training type: never billable.
	untyped := seedAppointment(t, db, tenant.ID, "Spaziergang", nil, 5)
	user := seedUser(t, db, tenant.ID, "arm", 10)
	booking, err := svc.Book(tenant.ID, untyped.ID, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.BillBooking(tenant.ID, booking.ID, 0); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("untyped appointment: got %v, want invalid configuration", err)
	}

	// Balance short of the price.
	training := seedTrainingType(t, db, tenant.ID, "Einzelstunde", models.CategoryTraining, 25)
	typed := seedAppointment(t, db, tenant.ID, "Einzeltraining", &training.ID, 5)
	booking, err = svc.Book(tenant.ID, typed.ID, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.BillBooking(tenant.ID, booking.ID, 0); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("broke user: got %v, want insufficient funds", err)
	}
	var fresh models.User
	if err := db.First(&fresh, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.Balance != 10 {
		t.Fatalf("failed billing must not move the balance, got %.2f", fresh.Balance)
	}
}

func TestBillAllParticipantsPartialFailure(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	training := seedTrainingType(t, db, tenant.ID, "Gruppenstunde", models.CategoryTraining, 20)
	appointment := seedAppointment(t, db, tenant.ID, "Gruppe Dienstag", &training.ID, 5)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	rich := seedUser(t, db, tenant.ID, "rich", 100)
	broke := seedUser(t, db, tenant.ID, "broke", 5)
	skipped := seedUser(t, db, tenant.ID, "no-show", 100)

	for _, u := range []*models.User{rich, broke, skipped} {
		booking, err := svc.Book(tenant.ID, appointment.ID, u.ID, nil)
		if err != nil {
			t.Fatal(err)
		}
		if u.ID != skipped.ID {
			if _, err := svc.ToggleAttendance(tenant.ID, booking.ID); err != nil {
				t.Fatal(err)
			}
		}
	}

	results, err := svc.BillAllParticipants(tenant.ID, appointment.ID, 0)
	if err != nil {
		t.Fatalf("BillAllParticipants: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (no-show excluded)", len(results))
	}
	outcome := map[uint]bool{}
	for _, r := range results {
		outcome[r.UserID] = r.OK
	}
	if !outcome[rich.ID] {
		t.Fatal("funded user should be billed")
	}
	if outcome[broke.ID] {
		t.Fatal("broke user should fail, not abort the batch")
	}

	var balances []models.User
	if err := db.Find(&balances, []uint{rich.ID, broke.ID, skipped.ID}).Error; err != nil {
		t.Fatal(err)
	}
	for _, u := range balances {
		switch u.ID {
		case rich.ID:
			if u.Balance != 80 {
				t.Fatalf("rich balance %.2f, want 80", u.Balance)
			}
		case broke.ID:
			if u.Balance != 5 {
				t.Fatalf("broke balance %.2f, want untouched 5", u.Balance)
			}
		case skipped.ID:
			if u.Balance != 100 {
				t.Fatalf("no-show balance %.2f, want untouched 100", u.Balance)
			}
		}
	}
}

func TestGrantAllProgressSkipsDuplicates(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	training := seedTrainingType(t, db, tenant.ID, "Gruppenstunde", models.CategoryTraining, 20)
	appointment := seedAppointment(t, db, tenant.ID, "Gruppe Mittwoch", &training.ID, 5)
	svc := NewBookingService(db, NewTenantConfigService(db, nil), NewAchievementService(db), LogNotifier{})

	user := seedUser(t, db, tenant.ID, "eifrig", 0)
	booking, err := svc.Book(tenant.ID, appointment.ID, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ToggleAttendance(tenant.ID, booking.ID); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		results, err := svc.GrantAllProgress(tenant.ID, appointment.ID)
		if err != nil {
			t.Fatalf("GrantAllProgress run %d: %v", i, err)
		}
		if len(results) != 1 || !results[0].OK {
			t.Fatalf("run %d: %+v", i, results)
		}
	}

	var count int64
	err = db.Model(&models.Achievement{}).
		Where("user_id = ? AND training_type_id = ?", user.ID, training.ID).
		Count(&count).Error
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("got %d achievements, want 1 despite repeated grants", count)
	}
}
