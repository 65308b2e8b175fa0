package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/duochat/duochat-server/internal/middleware"
	"github.com/duochat/duochat-server/internal/model"
	"github.com/duochat/duochat-server/internal/relay"
	"github.com/duochat/duochat-server/internal/service"
	"github.com/duochat/duochat-server/internal/session"
	"github.com/duochat/duochat-server/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type pairingFixture struct {
	handler  *PairingHandler
	codeRepo *mockCodeRepo
	roomRepo *mockRoomRepo
	issuer   *token.Issuer
}

func newPairingFixture(t *testing.T) *pairingFixture {
	t.Helper()

	codeRepo := &mockCodeRepo{}
	roomRepo := &mockRoomRepo{}
	issuer := token.NewIssuer(testSecret)
	hub := relay.NewHub(session.NewTable(), issuer, service.NewMessageService(&mockMessageRepo{}))
	pairing := service.NewPairingService(codeRepo, roomRepo, 5*time.Minute)

	return &pairingFixture{
		handler:  NewPairingHandler(pairing, issuer, hub),
		codeRepo: codeRepo,
		roomRepo: roomRepo,
		issuer:   issuer,
	}
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handlerFunc(rec, req)
	return rec
}

func withClaims(req *http.Request, claims *token.Claims) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

func TestGenerateEndpoint(t *testing.T) {
	t.Run("returns code, room and expiry", func(t *testing.T) {
		f := newPairingFixture(t)

		expiresAt := time.Now().Add(5 * time.Minute).Truncate(time.Second)
		f.codeRepo.On("DeletePendingByDevice", mock.Anything, "device-a").Return(int64(0), nil)
		f.codeRepo.On("Create", mock.Anything, mock.Anything).Return(&model.PairingCode{
			Code:      "482913",
			DeviceID:  "device-a",
			RoomID:    "room-1",
			ExpiresAt: expiresAt,
		}, nil)

		rec := postJSON(t, f.handler.Generate, "/api/pairing/generate", map[string]string{"deviceId": "device-a"})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "482913", resp["code"])
		assert.Equal(t, "room-1", resp["roomId"])
		assert.Equal(t, expiresAt.Format(time.RFC3339), resp["expiresAt"])
	})

	t.Run("missing deviceId is a 400", func(t *testing.T) {
		f := newPairingFixture(t)

		rec := postJSON(t, f.handler.Generate, "/api/pairing/generate", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.codeRepo.AssertNotCalled(t, "Create")
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		f := newPairingFixture(t)

		req := httptest.NewRequest("POST", "/api/pairing/generate", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		f.handler.Generate(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEnterEndpoint(t *testing.T) {
	t.Run("pairs and returns the consumer claim", func(t *testing.T) {
		f := newPairingFixture(t)

		pending := &model.PairingCode{
			Code:      "482913",
			DeviceID:  "device-a",
			RoomID:    "room-1",
			ExpiresAt: time.Now().Add(time.Minute),
		}
		f.codeRepo.On("FindPendingByCode", mock.Anything, "482913").Return(pending, nil)
		f.codeRepo.On("Consume", mock.Anything, "482913", "device-b").Return(pending, &model.Room{
			ID:      "room-1",
			DeviceA: "device-a",
			DeviceB: "device-b",
		}, nil)

		rec := postJSON(t, f.handler.Enter, "/api/pairing/enter", map[string]string{
			"code":     "482913",
			"deviceId": "device-b",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "room-1", resp["roomId"])

		claims, err := f.issuer.Verify(resp["token"])
		require.NoError(t, err)
		assert.Equal(t, "device-b", claims.DeviceID)
		assert.Equal(t, "room-1", claims.RoomID)
	})

	t.Run("unknown code is a 404", func(t *testing.T) {
		f := newPairingFixture(t)

		f.codeRepo.On("FindPendingByCode", mock.Anything, "000000").Return(nil, nil)

		rec := postJSON(t, f.handler.Enter, "/api/pairing/enter", map[string]string{
			"code":     "000000",
			"deviceId": "device-b",
		})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("expired code is a 410 and the row is deleted", func(t *testing.T) {
		f := newPairingFixture(t)

		f.codeRepo.On("FindPendingByCode", mock.Anything, "482913").Return(&model.PairingCode{
			Code:      "482913",
			DeviceID:  "device-a",
			RoomID:    "room-1",
			ExpiresAt: time.Now().Add(-time.Minute),
		}, nil)
		f.codeRepo.On("DeleteByCode", mock.Anything, "482913").Return(nil)

		rec := postJSON(t, f.handler.Enter, "/api/pairing/enter", map[string]string{
			"code":     "482913",
			"deviceId": "device-b",
		})

		assert.Equal(t, http.StatusGone, rec.Code)
		f.codeRepo.AssertExpectations(t)
	})

	t.Run("self pairing is a 400", func(t *testing.T) {
		f := newPairingFixture(t)

		f.codeRepo.On("FindPendingByCode", mock.Anything, "482913").Return(&model.PairingCode{
			Code:      "482913",
			DeviceID:  "device-a",
			RoomID:    "room-1",
			ExpiresAt: time.Now().Add(time.Minute),
		}, nil)

		rec := postJSON(t, f.handler.Enter, "/api/pairing/enter", map[string]string{
			"code":     "482913",
			"deviceId": "device-a",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-numeric code shape is a 400 before any lookup", func(t *testing.T) {
		f := newPairingFixture(t)

		rec := postJSON(t, f.handler.Enter, "/api/pairing/enter", map[string]string{
			"code":     "48ab13",
			"deviceId": "device-b",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.codeRepo.AssertNotCalled(t, "FindPendingByCode")
	})
}

func TestUnpairEndpoint(t *testing.T) {
	t.Run("destroys the claim holder's room", func(t *testing.T) {
		f := newPairingFixture(t)

		f.roomRepo.On("Destroy", mock.Anything, "room-1").Return(nil)

		req := withClaims(httptest.NewRequest("POST", "/api/pairing/unpair", nil),
			&token.Claims{DeviceID: "device-a", RoomID: "room-1"})
		rec := httptest.NewRecorder()
		f.handler.Unpair(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp["success"])
		f.roomRepo.AssertExpectations(t)
	})

	t.Run("repeating unpair still succeeds", func(t *testing.T) {
		f := newPairingFixture(t)

		f.roomRepo.On("Destroy", mock.Anything, "room-1").Return(nil).Twice()

		for i := 0; i < 2; i++ {
			req := withClaims(httptest.NewRequest("POST", "/api/pairing/unpair", nil),
				&token.Claims{DeviceID: "device-a", RoomID: "room-1"})
			rec := httptest.NewRecorder()
			f.handler.Unpair(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestRoomInfoEndpoint(t *testing.T) {
	t.Run("returns membership with the peer identified", func(t *testing.T) {
		f := newPairingFixture(t)

		createdAt := time.Now().Truncate(time.Second)
		f.roomRepo.On("FindByID", mock.Anything, "room-1").Return(&model.Room{
			ID:        "room-1",
			DeviceA:   "device-a",
			DeviceB:   "device-b",
			CreatedAt: createdAt,
		}, nil)

		req := withClaims(httptest.NewRequest("GET", "/api/room", nil),
			&token.Claims{DeviceID: "device-a", RoomID: "room-1"})
		rec := httptest.NewRecorder()
		f.handler.RoomInfo(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "room-1", resp["roomId"])
		assert.Equal(t, "device-b", resp["peerDeviceId"])
		assert.Equal(t, createdAt.Format(time.RFC3339), resp["createdAt"])
	})

	t.Run("stale claim after unpair is a 404", func(t *testing.T) {
		f := newPairingFixture(t)

		f.roomRepo.On("FindByID", mock.Anything, "room-1").Return(nil, nil)

		req := withClaims(httptest.NewRequest("GET", "/api/room", nil),
			&token.Claims{DeviceID: "device-a", RoomID: "room-1"})
		rec := httptest.NewRecorder()
		f.handler.RoomInfo(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("claim device outside the membership is a 403", func(t *testing.T) {
		f := newPairingFixture(t)

		f.roomRepo.On("FindByID", mock.Anything, "room-1").Return(&model.Room{
			ID:      "room-1",
			DeviceA: "device-c",
			DeviceB: "device-d",
		}, nil)

		req := withClaims(httptest.NewRequest("GET", "/api/room", nil),
			&token.Claims{DeviceID: "device-a", RoomID: "room-1"})
		rec := httptest.NewRecorder()
		f.handler.RoomInfo(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestVerifyEndpoint(t *testing.T) {
	t.Run("echoes the verified identities", func(t *testing.T) {
		h := NewAuthHandler()

		req := withClaims(httptest.NewRequest("POST", "/api/auth/verify", nil),
			&token.Claims{DeviceID: "device-a", RoomID: "room-1"})
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["valid"])
		assert.Equal(t, "room-1", resp["roomId"])
		assert.Equal(t, "device-a", resp["deviceId"])
	})
}
