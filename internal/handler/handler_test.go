package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/groupbuy-api/internal/config"
	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/handler"
	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/router"
	"github.com/noah-isme/groupbuy-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// mockListingService embeds the interface so tests only stub what they call.
type mockListingService struct {
	service.ListingService

	joinedUser   string
	joinErr      error
	statusCalled bool
	statusErr    error
	requester    string
	listErr      error
	lastQuery    dto.ListingQuery
	authorID     string
	deleted      bool
}

func (m *mockListingService) Delete(_ context.Context, _ string, requesterID string) error {
	if requesterID != m.authorID {
		return service.ErrForbidden
	}
	m.deleted = true
	return nil
}

func (m *mockListingService) Join(_ context.Context, listingID, userID string) (dto.JoinListingResponse, error) {
	m.joinedUser = userID
	if m.joinErr != nil {
		return dto.JoinListingResponse{}, m.joinErr
	}
	return dto.JoinListingResponse{
		Participant: dto.ParticipantResponse{ListingID: listingID, UserID: userID},
		Listing:     dto.ListingResponse{ID: listingID, CurrentQuantity: 1},
	}, nil
}

func (m *mockListingService) ChangeStatus(_ context.Context, listingID string, status models.ListingStatus, requesterID string) (dto.ListingResponse, error) {
	m.statusCalled = true
	m.requester = requesterID
	if m.statusErr != nil {
		return dto.ListingResponse{}, m.statusErr
	}
	return dto.ListingResponse{ID: listingID, Status: string(status)}, nil
}

func (m *mockListingService) List(_ context.Context, query dto.ListingQuery, _ string) (dto.ListingListResponse, error) {
	m.lastQuery = query
	if m.listErr != nil {
		return dto.ListingListResponse{}, m.listErr
	}
	return dto.ListingListResponse{Items: []dto.ListingResponse{}, Limit: query.Limit}, nil
}

type mockNotificationService struct {
	service.NotificationService
	userID string
}

func (m *mockNotificationService) UnreadCount(_ context.Context, userID string) (int64, error) {
	m.userID = userID
	return 3, nil
}

func newTestApp(t *testing.T, deps router.Dependencies) *fiber.App {
	t.Helper()
	logger := zerolog.New(io.Discard)
	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(logger)})
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "groupbuy-test", AppEnv: "test"}, deps)
	return app
}

func listingApp(t *testing.T, svc service.ListingService) *fiber.App {
	t.Helper()
	validate := validator.New(validator.WithRequiredStructEnabled())
	return newTestApp(t, router.Dependencies{
		ListingHandler: handler.NewListingHandler(svc, validate, zerolog.New(io.Discard), 100, time.Minute),
	})
}

func doRequest(t *testing.T, app *fiber.App, method, path, userID string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp, payload
}

func TestListingHandlerJoinUsesCallerIdentity(t *testing.T) {
	svc := &mockListingService{}
	app := listingApp(t, svc)
	userID := uuid.NewString()

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/participate", userID, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, userID, svc.joinedUser)

	var data dto.JoinListingResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Equal(t, 1, data.Listing.CurrentQuantity)
}

func TestListingHandlerJoinRejectsImpersonation(t *testing.T) {
	svc := &mockListingService{}
	app := listingApp(t, svc)

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/participate",
		uuid.NewString(), dto.JoinListingRequest{UserID: uuid.NewString()})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Equal(t, service.KindForbidden, body.Error)
	require.Empty(t, svc.joinedUser)

	resp, body = doRequest(t, app, http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/participate", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, service.KindUnauthorized, body.Error)
}

func TestListingHandlerMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{service.ErrAlreadyParticipated, fiber.StatusConflict, service.KindAlreadyParticipated},
		{service.ErrAuthorCannotJoin, fiber.StatusBadRequest, service.KindAuthorCannotJoin},
		{service.ErrPostNotOpen, fiber.StatusBadRequest, service.KindPostNotOpen},
		{service.ErrNotFound, fiber.StatusNotFound, service.KindNotFound},
		{errors.New("connection reset"), fiber.StatusInternalServerError, service.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			app := listingApp(t, &mockListingService{joinErr: tc.err})
			resp, body := doRequest(t, app, http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/participate",
				"", dto.JoinListingRequest{UserID: uuid.NewString()})
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)
			require.Equal(t, tc.kind, body.Error)
			if tc.status == fiber.StatusInternalServerError {
				require.Equal(t, "internal server error", body.Message)
			}
		})
	}
}

func TestListingHandlerChangeStatus(t *testing.T) {
	author := uuid.NewString()

	svc := &mockListingService{}
	app := listingApp(t, svc)
	resp, body := doRequest(t, app, http.MethodPatch, "/api/v1/listings/"+uuid.NewString()+"/status", "",
		dto.ListingStatusRequest{Status: "archived", AuthorID: author})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, service.KindValidation, body.Error)
	require.False(t, svc.statusCalled)

	resp, _ = doRequest(t, app, http.MethodPatch, "/api/v1/listings/"+uuid.NewString()+"/status", "",
		dto.ListingStatusRequest{Status: "closed", AuthorID: author})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, author, svc.requester)

	svc = &mockListingService{statusErr: &service.TransitionError{
		From:    models.ListingStatusOpen,
		To:      models.ListingStatusCompleted,
		Allowed: []models.ListingStatus{models.ListingStatusClosed, models.ListingStatusCancelled},
	}}
	app = listingApp(t, svc)
	resp, body = doRequest(t, app, http.MethodPatch, "/api/v1/listings/"+uuid.NewString()+"/status", author,
		dto.ListingStatusRequest{Status: "completed"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, service.KindInvalidTransition, body.Error)
	require.Contains(t, body.Message, "closed, cancelled")
}

func TestListingHandlerListParsesPaging(t *testing.T) {
	svc := &mockListingService{}
	app := listingApp(t, svc)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/listings?limit=5&offset=10&category=food", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, dto.ListingQuery{Limit: 5, Offset: 10, Category: "food"}, svc.lastQuery)

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/listings?limit=many", "", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, service.KindValidation, body.Error)
}

func TestNotificationHandlerRequiresIdentity(t *testing.T) {
	svc := &mockNotificationService{}
	app := newTestApp(t, router.Dependencies{
		NotificationHandler: handler.NewNotificationHandler(svc, zerolog.New(io.Discard), time.Second),
	})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/notifications/unread-count", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, service.KindUnauthorized, body.Error)

	userID := uuid.NewString()
	resp, body = doRequest(t, app, http.MethodGet, "/api/v1/notifications/unread-count?userId="+userID, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, userID, svc.userID)

	var count dto.UnreadCountResponse
	require.NoError(t, json.Unmarshal(body.Data, &count))
	require.Equal(t, int64(3), count.UnreadCount)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

func TestHealthCheckReportsDatabase(t *testing.T) {
	app := newTestApp(t, router.Dependencies{Database: stubPinger{}})
	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "groupbuy-test", resp.Header.Get("X-Application"))

	var health handler.HealthResponse
	require.NoError(t, json.Unmarshal(body.Data, &health))
	require.Equal(t, "ok", health.Database)

	app = newTestApp(t, router.Dependencies{Database: stubPinger{err: errors.New("down")}})
	resp, _ = doRequest(t, app, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	app := newTestApp(t, router.Dependencies{})
	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/nowhere", "", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, service.KindNotFound, body.Error)
}

func TestListingHandlerDeleteRequiresAuthor(t *testing.T) {
	author := uuid.NewString()
	svc := &mockListingService{authorID: author}
	app := listingApp(t, svc)
	path := "/api/v1/listings/" + uuid.NewString()

	resp, body := doRequest(t, app, http.MethodDelete, path, "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, service.KindUnauthorized, body.Error)

	resp, body = doRequest(t, app, http.MethodDelete, path, uuid.NewString(), nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Equal(t, service.KindForbidden, body.Error)
	require.False(t, svc.deleted)

	resp, _ = doRequest(t, app, http.MethodDelete, path, author, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, svc.deleted)
}
