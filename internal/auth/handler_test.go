package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHandler_HandleLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := NewMockauthenticator(ctrl)
	handler := NewHandler(service, true)

	service.EXPECT().Login(gomock.Any(), testCredentials, gomock.Any()).Return(testToken, nil)
	req := httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(`{"username":"testuser","password":"testpass123"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.HandleLogin(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var loginResp LoginResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&loginResp))
	assert.Equal(t, testToken, loginResp.Token)

	// form body
	service.EXPECT().Login(gomock.Any(), testCredentials, gomock.Any()).Return("", ErrWrongPassword)
	form := url.Values{"username": {testUsername}, "password": {testPassword}}
	req = httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	handler.HandleLogin(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(`{"username":""}`))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	handler.HandleLogin(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	service.EXPECT().Login(gomock.Any(), testCredentials, gomock.Any()).Return("", errors.New("redis down"))
	req = httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(`{"username":"testuser","password":"testpass123"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	handler.HandleLogin(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandler_HandleRegister(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := NewMockauthenticator(ctrl)
	handler := NewHandler(service, true)
	body := `{"username":"testuser","password":"testpass123"}`

	testCases := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{name: "Created", expectedStatus: http.StatusCreated},
		{name: "Exists", err: ErrUserExists, expectedStatus: http.StatusConflict},
		{name: "Invalid", err: ErrInvalidCredentials, expectedStatus: http.StatusBadRequest},
		{name: "Internal", err: errors.New("db down"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err != nil {
				service.EXPECT().Register(gomock.Any(), testCredentials).Return(nil, tc.err)
			} else {
				service.EXPECT().Register(gomock.Any(), testCredentials).Return(&User{ID: 1, Username: testUsername}, nil)
			}
			req := httptest.NewRequest(http.MethodPost, "/a/register", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			handler.HandleRegister(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}
}

func TestHandler_HandleRegister_Disabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewHandler(NewMockauthenticator(ctrl), false)

	req := httptest.NewRequest(http.MethodPost, "/a/register", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.HandleRegister(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandler_HandleLogout(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := NewMockauthenticator(ctrl)
	handler := NewHandler(service, true)

	rr := httptest.NewRecorder()
	handler.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/a/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	service.EXPECT().Logout(gomock.Any(), testToken).Return(true, nil)
	req := httptest.NewRequest(http.MethodPost, "/a/logout", nil)
	req.Header.Set(TokenHeader, testToken)
	rr = httptest.NewRecorder()
	handler.HandleLogout(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	service.EXPECT().Logout(gomock.Any(), "stale").Return(false, nil)
	req = httptest.NewRequest(http.MethodPost, "/a/logout", nil)
	req.Header.Set(TokenHeader, "stale")
	rr = httptest.NewRecorder()
	handler.HandleLogout(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
