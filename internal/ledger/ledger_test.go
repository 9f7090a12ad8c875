package ledger

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"newsdesk/internal/models"
)

func newMockLedger(t *testing.T) (*SQLLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLedger(db), mock
}

func expectExpiry(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`UPDATE herald\.social_posts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestClaim_Wins(t *testing.T) {
	l, mock := newMockLedger(t)

	expectExpiry(mock)
	mock.ExpectQuery(`INSERT INTO herald\.social_posts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("post-1"))

	res, err := l.Claim(context.Background(), "item-1", models.PlatformTelegram, models.LangEN)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !res.Claimed {
		t.Error("expected claim to win")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClaim_LosesToLiveAttempt(t *testing.T) {
	l, mock := newMockLedger(t)

	// Insert hits the partial unique index and returns no row, so the claim
	// falls back to reading the attempt that owns the target.
	expectExpiry(mock)
	mock.ExpectQuery(`INSERT INTO herald\.social_posts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectExpiry(mock)
	mock.ExpectQuery(`SELECT status, platform_post_url`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "platform_post_url"}).
			AddRow(string(models.SocialPostPosted), "https://t.me/c/1/99"))

	res, err := l.Claim(context.Background(), "item-1", models.PlatformTelegram, models.LangEN)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if res.Claimed {
		t.Error("expected claim to lose")
	}
	if res.Existing.State != models.SocialPostPosted {
		t.Errorf("expected existing state %q, got %q", models.SocialPostPosted, res.Existing.State)
	}
	if res.Existing.URL != "https://t.me/c/1/99" {
		t.Errorf("unexpected existing URL %q", res.Existing.URL)
	}
}

func TestCheckStatus_NotStarted(t *testing.T) {
	l, mock := newMockLedger(t)

	expectExpiry(mock)
	mock.ExpectQuery(`SELECT status, platform_post_url`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "platform_post_url"}))

	status, err := l.CheckStatus(context.Background(), "item-1", models.PlatformX, models.LangDE)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if !status.NotStarted() {
		t.Errorf("expected not-started, got %+v", status)
	}
}

func TestCheckStatus_ExpiresStalePendingFirst(t *testing.T) {
	l, mock := newMockLedger(t)

	// The expiry sweep flips one stale pending row, after which the target
	// reads as not started and may be claimed again.
	mock.ExpectExec(`UPDATE herald\.social_posts`).
		WithArgs("item-1", string(models.PlatformTelegram), string(models.LangEN),
			string(models.SocialPostPending), string(models.SocialPostFailed)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT status, platform_post_url`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "platform_post_url"}))

	status, err := l.CheckStatus(context.Background(), "item-1", models.PlatformTelegram, models.LangEN)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if !status.NotStarted() {
		t.Errorf("expected not-started after expiry, got %+v", status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolve_Success(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectExec(`UPDATE herald\.social_posts`).
		WithArgs("item-1", string(models.PlatformTelegram), string(models.LangEN),
			string(models.SocialPostPosted), "99", "https://t.me/c/1/99", "",
			string(models.SocialPostPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := l.Resolve(context.Background(), "item-1", models.PlatformTelegram, models.LangEN, Outcome{
		Success: true, PostID: "99", PostURL: "https://t.me/c/1/99",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolve_NoPendingClaim(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectExec(`UPDATE herald\.social_posts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := l.Resolve(context.Background(), "item-1", models.PlatformX, models.LangEN, Outcome{
		Success: false, Error: "rate limited",
	})
	if err == nil {
		t.Fatal("expected error resolving without a pending claim")
	}
}

func TestNilLedgerIsSafe(t *testing.T) {
	var l *SQLLedger
	if _, err := l.Claim(context.Background(), "x", models.PlatformX, models.LangEN); err == nil {
		t.Error("expected error from nil ledger")
	}
	if _, err := l.CheckStatus(context.Background(), "x", models.PlatformX, models.LangEN); err == nil {
		t.Error("expected error from nil ledger")
	}
}
