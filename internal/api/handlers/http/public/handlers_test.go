package public_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"roadwatch/internal/api/handlers/http/public"
	mock_public "roadwatch/internal/api/handlers/http/public/mocks"
	"roadwatch/internal/domain"
	"roadwatch/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func addChiURLParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response: %v, body=%s", err, rr.Body.String())
	}
	return out
}

type mocks struct {
	reporter     *mock_public.MockReporter
	incidents    *mock_public.MockIncidents
	interactions *mock_public.MockInteractions
	profiles     *mock_public.MockProfiles
}

func newHandler(t *testing.T, maxUpload int64) (*public.Handler, mocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := mocks{
		reporter:     mock_public.NewMockReporter(ctrl),
		incidents:    mock_public.NewMockIncidents(ctrl),
		interactions: mock_public.NewMockInteractions(ctrl),
		profiles:     mock_public.NewMockProfiles(ctrl),
	}
	return public.NewHandler(newTestLogger(), m.reporter, m.incidents, m.interactions, m.profiles, maxUpload), m
}

func photoForm(t *testing.T, fields map[string]string, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="photo"; filename="pothole.jpg"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

// --- Reports ---

func TestReportIncident_Created_201(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	id := uuid.New()

	m.reporter.EXPECT().
		ReportIncident(gomock.Any(), domain.ReportIncidentRequest{
			ReporterID: "u1",
			Type:       domain.IncidentRoadblock,
			Address:    "Khreshchatyk 1",
			Lat:        50.4501,
			Lng:        30.5234,
		}).
		Return(domain.ReportResult{Outcome: domain.ReportCreated, IncidentID: id}, nil).
		Times(1)

	body := `{"reporter_id":"u1","type":"roadblock","address":"Khreshchatyk 1","lat":50.4501,"lng":30.5234}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.ReportIncident(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d, body=%s", rr.Code, rr.Body.String())
	}
	got := decodeJSON[domain.ReportResult](t, rr)
	if got.IncidentID != id || got.Outcome != domain.ReportCreated {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestReportIncident_Merged_200(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	m.reporter.EXPECT().
		ReportIncident(gomock.Any(), gomock.Any()).
		Return(domain.ReportResult{Outcome: domain.ReportMerged, IncidentID: uuid.New()}, nil)

	body := `{"reporter_id":"u2","type":"roadblock","address":"a","lat":50.45,"lng":30.52}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.ReportIncident(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}

func TestReportIncident_InvalidJSON_400(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"broken":        `{"reporter_id":`,
		"unknown field": `{"reporter_id":"u1","severity":3}`,
		"trailing data": `{"reporter_id":"u1"}{"x":1}`,
	}
	for name, body := range bodies {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h, _ := newHandler(t, 0)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()
			h.ReportIncident(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rr.Code)
			}
		})
	}
}

func TestReportIncident_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "duplicate reporter", err: e.ErrDuplicateReporter, want: http.StatusConflict},
		{name: "validation", err: e.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "coordinates", err: e.ErrInvalidCoordinates, want: http.StatusBadRequest},
		{name: "store down", err: e.ErrStoreUnavailable, want: http.StatusServiceUnavailable},
		{name: "lock busy", err: e.ErrLockBusy, want: http.StatusServiceUnavailable},
		{name: "deadline", err: e.ErrDeadline, want: http.StatusGatewayTimeout},
		{name: "unknown", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, m := newHandler(t, 0)
			m.reporter.EXPECT().
				ReportIncident(gomock.Any(), gomock.Any()).
				Return(domain.ReportResult{}, fmt.Errorf("service.LifecycleEngine.ReportIncident: %w", tt.err))

			body := `{"reporter_id":"u1","type":"roadblock","address":"a","lat":50.45,"lng":30.52}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()
			h.ReportIncident(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("expected %d got %d, body=%s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

// --- Reads ---

func TestListActive_NoRegion(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	items := []domain.CachedIncident{{ID: uuid.New()}, {ID: uuid.New()}}
	m.incidents.EXPECT().ListActive(gomock.Any(), (*domain.Region)(nil)).Return(items, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
	rr := httptest.NewRecorder()
	h.ListActive(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	got := decodeJSON[domain.ActiveIncidentsResponse](t, rr)
	if got.Count != 2 || len(got.Incidents) != 2 {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestListActive_Region(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	m.incidents.EXPECT().
		ListActive(gomock.Any(), &domain.Region{Lat: 50.45, Lng: 30.52, RadiusKM: 2.5}).
		Return([]domain.CachedIncident{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents?lat=50.45&lng=30.52&radius_km=2.5", nil)
	rr := httptest.NewRecorder()
	h.ListActive(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}

func TestListActive_PartialRegion_400(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents?lat=50.45", nil)
	rr := httptest.NewRecorder()
	h.ListActive(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGetIncident(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	now := time.Date(2025, 12, 23, 12, 0, 0, 0, time.UTC)
	inc := &domain.Incident{
		ID:           uuid.New(),
		Type:         domain.IncidentObstacleOnRoad,
		CreationDate: now,
		Lifetime:     now.Add(30 * time.Minute),
		UsersLiked:   []string{"u1", "u2"},
		Reporters:    []string{"u1"},
	}
	m.incidents.EXPECT().Get(gomock.Any(), inc.ID).Return(inc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/"+inc.ID.String(), nil)
	req = addChiURLParam(req, "id", inc.ID.String())
	rr := httptest.NewRecorder()
	h.GetIncident(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	got := decodeJSON[domain.CachedIncident](t, rr)
	if got.ID != inc.ID || got.LikesCount != 2 {
		t.Fatalf("unexpected incident: %+v", got)
	}
}

func TestGetIncident_InvalidID_400(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/nope", nil)
	req = addChiURLParam(req, "id", "nope")
	rr := httptest.NewRecorder()
	h.GetIncident(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGetIncident_NotFound_404(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	id := uuid.New()
	m.incidents.EXPECT().Get(gomock.Any(), id).Return(nil, e.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/"+id.String(), nil)
	req = addChiURLParam(req, "id", id.String())
	rr := httptest.NewRecorder()
	h.GetIncident(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

// --- Comments and likes ---

func TestAddComment_201(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	id := uuid.New()
	m.interactions.EXPECT().
		AddComment(gomock.Any(), id, domain.AddCommentRequest{AuthorID: "u5", Text: "cleared"}).
		Return(&domain.Comment{ID: uuid.New(), IncidentID: id, AuthorID: "u5", Text: "cleared"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/"+id.String()+"/comments", bytes.NewBufferString(`{"author_id":"u5","text":"cleared"}`))
	req = addChiURLParam(req, "id", id.String())
	rr := httptest.NewRecorder()
	h.AddComment(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestListComments(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	id := uuid.New()
	m.incidents.EXPECT().ListComments(gomock.Any(), id).Return([]*domain.Comment{{ID: uuid.New(), IncidentID: id}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/"+id.String()+"/comments", nil)
	req = addChiURLParam(req, "id", id.String())
	rr := httptest.NewRecorder()
	h.ListComments(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	got := decodeJSON[map[string][]domain.Comment](t, rr)
	if len(got["comments"]) != 1 {
		t.Fatalf("unexpected comments: %+v", got)
	}
}

func TestLike(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	id := uuid.New()
	m.interactions.EXPECT().
		Like(gomock.Any(), id, domain.LikeRequest{UserID: "u9"}).
		Return(domain.LikeResult{Added: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/"+id.String()+"/like", bytes.NewBufferString(`{"user_id":"u9"}`))
	req = addChiURLParam(req, "id", id.String())
	rr := httptest.NewRecorder()
	h.Like(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if got := decodeJSON[domain.LikeResult](t, rr); !got.Added {
		t.Fatalf("expected added=true")
	}
}

// --- Photos ---

func TestUploadIncidentPhoto_201(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 1<<20)
	id := uuid.New()
	data := []byte("\xff\xd8\xff\xe0jpegdata")

	m.interactions.EXPECT().
		UploadPhoto(gomock.Any(), id, "pothole.jpg", "image/jpeg", int64(len(data)), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _, _ string, _ int64, r io.Reader) (string, error) {
			got, err := io.ReadAll(r)
			if err != nil || !bytes.Equal(got, data) {
				t.Fatalf("unexpected payload: %q err=%v", got, err)
			}
			return "http://minio/roadwatch/incidents/" + id.String() + "/x.jpg", nil
		})

	body, ct := photoForm(t, nil, "", data)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/"+id.String()+"/photos", body)
	req.Header.Set("Content-Type", ct)
	req = addChiURLParam(req, "id", id.String())
	rr := httptest.NewRecorder()
	h.UploadIncidentPhoto(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeJSON[domain.UploadResponse](t, rr); got.URL == "" {
		t.Fatalf("expected url in response")
	}
}

func TestUploadIncidentPhoto_TooLarge_413(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, 64)
	id := uuid.New()

	body, ct := photoForm(t, nil, "image/png", bytes.Repeat([]byte("x"), 1024))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/"+id.String()+"/photos", body)
	req.Header.Set("Content-Type", ct)
	req = addChiURLParam(req, "id", id.String())
	rr := httptest.NewRecorder()
	h.UploadIncidentPhoto(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", rr.Code)
	}
}

func TestUploadIncidentPhoto_MissingPart_400(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, 1<<20)
	id := uuid.New()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	_ = mw.WriteField("note", "no photo")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/"+id.String()+"/photos", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = addChiURLParam(req, "id", id.String())
	rr := httptest.NewRecorder()
	h.UploadIncidentPhoto(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestUploadReportPhoto(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 1<<20)
	m.interactions.EXPECT().
		UploadReportPhoto(gomock.Any(), "u1", "pothole.jpg", "image/png", int64(4), gomock.Any()).
		Return("http://minio/roadwatch/uploads/u1/x.png", nil)

	body, ct := photoForm(t, map[string]string{"user_id": "u1"}, "image/png", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.UploadReportPhoto(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestUploadReportPhoto_InvalidUser_400(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 1<<20)
	m.interactions.EXPECT().
		UploadReportPhoto(gomock.Any(), "", gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", e.ErrInvalidUserID)

	body, ct := photoForm(t, nil, "image/png", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.UploadReportPhoto(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

// --- Profiles ---

func TestGetProfile(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, 0)
	m.profiles.EXPECT().Profile(gomock.Any(), "u1").Return(&domain.UserProfile{UserID: "u1", Experience: 7}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/profile", nil)
	req = addChiURLParam(req, "id", "u1")
	rr := httptest.NewRecorder()
	h.GetProfile(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if got := decodeJSON[domain.UserProfile](t, rr); got.Experience != 7 {
		t.Fatalf("unexpected profile: %+v", got)
	}
}
