package churchadmin_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	churchadminfeature "github.com/parishhub/parishhub/internal/app/features/churchadmin"
	appstore "github.com/parishhub/parishhub/internal/app/store/applications"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/app/system/indexes"
	"github.com/parishhub/parishhub/internal/app/system/mailer"
	"github.com/parishhub/parishhub/internal/app/system/upload"
	"github.com/parishhub/parishhub/internal/domain/models"
	"github.com/parishhub/parishhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// pngHeader is enough for content-type sniffing to identify a PNG.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestHandler(t *testing.T) (*churchadminfeature.Handler, *mongo.Database) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	uploads, err := upload.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}

	mail, err := mailer.New(mailer.Config{
		Host: "127.0.0.1", Port: 1,
		From: "noreply@test.local", FromName: "Test",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("mailer: %v", err)
	}

	return &churchadminfeature.Handler{
		Log:      zap.NewNop(),
		Apps:     appstore.New(db),
		Users:    userstore.New(db),
		Uploads:  uploads,
		Mailer:   mail,
		SiteName: "Test",
	}, db
}

func multipartApplication(t *testing.T, fields map[string]string, certName string, cert []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if cert != nil {
		fw, err := mw.CreateFormFile("certificate", certName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.Copy(fw, bytes.NewReader(cert)); err != nil {
			t.Fatalf("write certificate: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func applicationFields() map[string]string {
	return map[string]string{
		"church_name":    "St. Mark Cathedral",
		"address":        "12 Cathedral Road",
		"email":          "stmark@example.com",
		"contact_number": "555-0100",
	}
}

func TestRegister_SubmitsApplication(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleRegister(rec, multipartApplication(t, applicationFields(), "cert.png", pngHeader))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected the new application id")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	apps, err := h.Apps.List(ctx, models.ApplicationPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("pending applications: got %d, want 1", len(apps))
	}
	if apps[0].CertificatePath == "" {
		t.Error("certificate path should be recorded")
	}
}

func TestRegister_MissingFields(t *testing.T) {
	h, _ := newTestHandler(t)

	fields := applicationFields()
	delete(fields, "address")

	rec := httptest.NewRecorder()
	h.HandleRegister(rec, multipartApplication(t, fields, "cert.png", pngHeader))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRegister_RejectsBadFileType(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleRegister(rec, multipartApplication(t, applicationFields(), "cert.txt", []byte("plain text, not a certificate")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRegister_DuplicateLiveApplication(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	f.CreateApplication(ctx, "St. Mark Cathedral", "stmark@example.com", models.ApplicationPending)

	rec := httptest.NewRecorder()
	h.HandleRegister(rec, multipartApplication(t, applicationFields(), "cert.png", pngHeader))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusBadRequest, rec.Body)
	}
}

func TestApprove_ProvisionsNewAdmin(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	app := f.CreateApplication(ctx, "St. Mark Cathedral", "pastor@example.com", models.ApplicationPending)

	body := bytes.NewReader([]byte(`{"notes":"registry entry confirmed"}`))
	req := httptest.NewRequest("PATCH", "/applications/"+app.ID.Hex()+"/approve", body)
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "id", app.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleApprove(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	got, err := h.Apps.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if got.Status != models.ApplicationApproved {
		t.Errorf("status: got %q, want approved", got.Status)
	}
	if got.ReviewNotes != "registry entry confirmed" {
		t.Errorf("review notes: got %q, want the reviewer's notes recorded", got.ReviewNotes)
	}

	admin, err := h.Users.GetByEmail(ctx, "pastor@example.com")
	if err != nil {
		t.Fatalf("provisioned admin lookup: %v", err)
	}
	if admin.Role != models.RoleChurchAdmin {
		t.Errorf("role: got %q, want %q", admin.Role, models.RoleChurchAdmin)
	}
	if !admin.Verified {
		t.Error("provisioned admin should be verified")
	}
	if !admin.PasswordTemp {
		t.Error("provisioned admin should carry the temporary-password flag")
	}
	if admin.ChurchID == nil || *admin.ChurchID != app.ID {
		t.Error("provisioned admin should be linked to the church")
	}
}

func TestApprove_PromotesExistingAccount(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	existing := f.CreateUser(ctx, "Pastor John", "pastor@example.com", models.RoleMember, nil)
	app := f.CreateApplication(ctx, "St. Mark Cathedral", "pastor@example.com", models.ApplicationPending)

	req := testutil.NewAuthenticatedRequest("PATCH", "/applications/"+app.ID.Hex()+"/approve", testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "id", app.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleApprove(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.UserID != existing.ID.Hex() {
		t.Errorf("user_id: got %q, want the existing account %q", resp.UserID, existing.ID.Hex())
	}

	got, err := h.Users.GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != models.RoleChurchAdmin {
		t.Errorf("role: got %q, want %q", got.Role, models.RoleChurchAdmin)
	}
}

func TestApprove_RepeatIsIdempotent(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	app := f.CreateApplication(ctx, "St. Mark Cathedral", "pastor@example.com", models.ApplicationPending)

	approve := func() (int, string, string) {
		req := testutil.NewAuthenticatedRequest("PATCH", "/applications/"+app.ID.Hex()+"/approve", testutil.AdminUser())
		req = testutil.WithChiURLParam(req, "id", app.ID.Hex())
		rec := httptest.NewRecorder()
		h.HandleApprove(rec, req)

		var resp struct {
			Message string `json:"message"`
			UserID  string `json:"user_id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse response: %v", err)
		}
		return rec.Code, resp.Message, resp.UserID
	}

	code, message, userID := approve()
	if code != http.StatusOK {
		t.Fatalf("first approve: got %d, want %d", code, http.StatusOK)
	}
	if message != "Application approved." {
		t.Errorf("first message: got %q", message)
	}

	// The repeat succeeds but tells the admin UI it was a no-op, and no
	// second account appears.
	code, message, repeatID := approve()
	if code != http.StatusOK {
		t.Fatalf("repeat approve: got %d, want %d", code, http.StatusOK)
	}
	if message != "Application is already approved." {
		t.Errorf("repeat message: got %q, want the already-approved wording", message)
	}
	if repeatID != userID {
		t.Errorf("repeat user_id: got %q, want %q", repeatID, userID)
	}
}

func TestReject(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	app := f.CreateApplication(ctx, "St. Mark Cathedral", "pastor@example.com", models.ApplicationPending)

	body := bytes.NewReader([]byte(`{"notes":"certificate unreadable"}`))
	req := httptest.NewRequest("PATCH", "/applications/"+app.ID.Hex()+"/reject", body)
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithUser(req, testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "id", app.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleReject(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	got, err := h.Apps.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if got.Status != models.ApplicationRejected {
		t.Errorf("status: got %q, want rejected", got.Status)
	}
	if got.ReviewNotes != "certificate unreadable" {
		t.Error("review notes should be recorded")
	}

	// A rejected applicant can apply again.
	rec = httptest.NewRecorder()
	h.HandleRegister(rec, multipartApplication(t, applicationFields(), "cert.png", pngHeader))
	if rec.Code != http.StatusCreated {
		t.Errorf("re-application after rejection: got %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestGenerateJoinCode_OwnChurch(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	app := f.CreateApplication(ctx, "St. Mark Cathedral", "pastor@example.com", models.ApplicationApproved)
	admin := f.CreateChurchAdmin(ctx, "Pastor John", "pastor@example.com", app.ID)

	caller := testutil.TestUser{ID: admin.ID.Hex(), Email: admin.Email, Role: models.RoleChurchAdmin}
	req := testutil.NewAuthenticatedRequest("POST", "/applications/"+app.ID.Hex()+"/join-code", caller)
	req = testutil.WithChiURLParam(req, "id", app.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleGenerateJoinCode(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Code) != churchadminfeature.JoinCodeLength {
		t.Errorf("code length: got %d, want %d", len(resp.Code), churchadminfeature.JoinCodeLength)
	}

	// Codes are write-once.
	req = testutil.NewAuthenticatedRequest("POST", "/applications/"+app.ID.Hex()+"/join-code", caller)
	req = testutil.WithChiURLParam(req, "id", app.ID.Hex())
	rec = httptest.NewRecorder()
	h.HandleGenerateJoinCode(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second issue: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGenerateJoinCode_OtherChurchForbidden(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	app := f.CreateApplication(ctx, "St. Mark Cathedral", "pastor@example.com", models.ApplicationApproved)
	other := f.CreateApplication(ctx, "Grace Chapel", "grace@example.com", models.ApplicationApproved)
	admin := f.CreateChurchAdmin(ctx, "Grace Admin", "grace@example.com", other.ID)

	caller := testutil.TestUser{ID: admin.ID.Hex(), Email: admin.Email, Role: models.RoleChurchAdmin}
	req := testutil.NewAuthenticatedRequest("POST", "/applications/"+app.ID.Hex()+"/join-code", caller)
	req = testutil.WithChiURLParam(req, "id", app.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleGenerateJoinCode(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestGenerateJoinCode_NotApproved(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	app := f.CreateApplication(ctx, "St. Mark Cathedral", "pastor@example.com", models.ApplicationPending)

	req := testutil.NewAuthenticatedRequest("POST", "/applications/"+app.ID.Hex()+"/join-code", testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "id", app.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleGenerateJoinCode(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusBadRequest, rec.Body)
	}
}
