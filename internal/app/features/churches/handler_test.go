package churches_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	churchesfeature "github.com/parishhub/parishhub/internal/app/features/churches"
	appstore "github.com/parishhub/parishhub/internal/app/store/applications"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/app/system/indexes"
	"github.com/parishhub/parishhub/internal/domain/models"
	"github.com/parishhub/parishhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*churchesfeature.Handler, *mongo.Database) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	return churchesfeature.NewHandler(zap.NewNop(), appstore.New(db), userstore.New(db)), db
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestJoin_LinksMember(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark Cathedral", "stmark@example.com", "STMARK01")
	member := f.CreateUser(ctx, "Lone Member", "lone@example.com", models.RoleMember, nil)

	caller := testutil.TestUser{ID: member.ID.Hex(), Email: member.Email, Role: models.RoleMember}
	req := testutil.WithUser(jsonRequest(t, "POST", "/join", map[string]string{"code": "STMARK01"}), caller)

	rec := httptest.NewRecorder()
	h.HandleJoin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	got, err := h.Users.GetByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ChurchID == nil || *got.ChurchID != church.ID {
		t.Error("member should be linked to the church")
	}
}

func TestJoin_AlreadyLinked(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	first := f.CreateApprovedChurch(ctx, "St. Mark Cathedral", "stmark@example.com", "STMARK01")
	f.CreateApprovedChurch(ctx, "Grace Chapel", "grace@example.com", "GRACE002")
	member := f.CreateMember(ctx, "Settled Member", "settled@example.com", first.ID)

	caller := testutil.TestUser{ID: member.ID.Hex(), Email: member.Email, Role: models.RoleMember}
	req := testutil.WithUser(jsonRequest(t, "POST", "/join", map[string]string{"code": "GRACE002"}), caller)

	rec := httptest.NewRecorder()
	h.HandleJoin(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusBadRequest, rec.Body)
	}

	got, err := h.Users.GetByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ChurchID == nil || *got.ChurchID != first.ID {
		t.Error("existing affiliation should be unchanged")
	}
}

func TestJoin_InvalidCode(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	member := f.CreateUser(ctx, "Lone Member", "lone@example.com", models.RoleMember, nil)

	caller := testutil.TestUser{ID: member.ID.Hex(), Email: member.Email, Role: models.RoleMember}
	req := testutil.WithUser(jsonRequest(t, "POST", "/join", map[string]string{"code": "NOPE9999"}), caller)

	rec := httptest.NewRecorder()
	h.HandleJoin(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGet_PublicProfile(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark Cathedral", "stmark@example.com", "STMARK01")

	req := testutil.WithChiURLParam(testutil.NewRequest("GET", "/"+church.ID.Hex()), "id", church.ID.Hex())
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "St. Mark Cathedral") {
		t.Error("public profile should include the church name")
	}
	if strings.Contains(body, "stmark@example.com") {
		t.Error("public profile should not expose the contact email")
	}
	if strings.Contains(body, church.CertificatePath) {
		t.Error("public profile should not expose the certificate path")
	}
}

func TestGet_PendingIsHidden(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	app := f.CreateApplication(ctx, "Hidden Parish", "hidden@example.com", models.ApplicationPending)

	req := testutil.WithChiURLParam(testutil.NewRequest("GET", "/"+app.ID.Hex()), "id", app.ID.Hex())
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUpdate_SanitizesBio(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark Cathedral", "stmark@example.com", "STMARK01")
	admin := f.CreateChurchAdmin(ctx, "Pastor John", "stmark@example.com", church.ID)

	caller := testutil.TestUser{ID: admin.ID.Hex(), Email: admin.Email, Role: models.RoleChurchAdmin}
	req := testutil.WithUser(jsonRequest(t, "PATCH", "/"+church.ID.Hex(), map[string]string{
		"bio": `<p>Welcome!</p><script>alert("xss")</script>`,
	}), caller)
	req = testutil.WithChiURLParam(req, "id", church.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	got, err := h.Apps.GetByID(ctx, church.ID)
	if err != nil {
		t.Fatalf("get church: %v", err)
	}
	if strings.Contains(got.Bio, "<script>") {
		t.Errorf("bio should be sanitized, got %q", got.Bio)
	}
	if !strings.Contains(got.Bio, "Welcome!") {
		t.Errorf("benign markup should survive, got %q", got.Bio)
	}
}

func TestUpdate_OtherChurchForbidden(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark Cathedral", "stmark@example.com", "STMARK01")
	other := f.CreateApprovedChurch(ctx, "Grace Chapel", "grace@example.com", "GRACE002")
	admin := f.CreateChurchAdmin(ctx, "Grace Admin", "grace@example.com", other.ID)

	caller := testutil.TestUser{ID: admin.ID.Hex(), Email: admin.Email, Role: models.RoleChurchAdmin}
	req := testutil.WithUser(jsonRequest(t, "PATCH", "/"+church.ID.Hex(), map[string]string{"bio": "takeover"}), caller)
	req = testutil.WithChiURLParam(req, "id", church.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestUpdate_PlatformAdminAllowed(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark Cathedral", "stmark@example.com", "STMARK01")

	req := testutil.WithUser(jsonRequest(t, "PATCH", "/"+church.ID.Hex(), map[string]string{"bio": "Edited by staff"}), testutil.SuperAdminUser())
	req = testutil.WithChiURLParam(req, "id", church.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}
}
