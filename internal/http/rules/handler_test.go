package rules

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/spendtrack/internal/rules"
)

func TestHandler(t *testing.T) {
	transport := uuid.New()

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		setupMock  func(m *rules.MockRepository)
		wantStatus int
		wantBody   string
	}{
		{
			name:   "SuggestMatch",
			method: http.MethodGet,
			target: "/rules/suggest?description=UBER+TRIP",
			setupMock: func(m *rules.MockRepository) {
				m.EXPECT().FindMatch(gomock.Any(), "UBER TRIP").Return(&rules.Rule{Pattern: "uber", CategoryID: transport}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   transport.String(),
		},
		{
			name:   "SuggestNoMatch",
			method: http.MethodGet,
			target: "/rules/suggest?description=MBWAY",
			setupMock: func(m *rules.MockRepository) {
				m.EXPECT().FindMatch(gomock.Any(), "MBWAY").Return(nil, rules.ErrNoMatch)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"category_id":null`,
		},
		{
			name:       "SuggestMissingParam",
			method:     http.MethodGet,
			target:     "/rules/suggest",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "Learn",
			method: http.MethodPost,
			target: "/rules",
			body:   `{"pattern":"uber","category_id":"` + transport.String() + `"}`,
			setupMock: func(m *rules.MockRepository) {
				m.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"pattern":"uber"`,
		},
		{
			name:       "LearnMissingCategory",
			method:     http.MethodPost,
			target:     "/rules",
			body:       `{"pattern":"uber"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "category_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			repo := rules.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			router := chi.NewRouter()
			router.Route("/rules", NewHandler(rules.NewService(repo)).Routes)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := rules.NewMockRepository(ctrl)

	repo.EXPECT().List(gomock.Any()).Return([]*rules.Rule{{ID: uuid.New(), Pattern: "rent", CategoryID: uuid.New()}}, nil)

	router := chi.NewRouter()
	router.Route("/rules", NewHandler(rules.NewService(repo)).Routes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []ruleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "rent", got[0].Pattern)
}
