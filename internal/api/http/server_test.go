package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/api/http/router"
	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/repo/repotest"
	"github.com/estacaoterapia/estacao_backend/internal/service/address"
	"github.com/estacaoterapia/estacao_backend/internal/service/avulsa"
	"github.com/estacaoterapia/estacao_backend/internal/service/consulta"
	"github.com/estacaoterapia/estacao_backend/internal/service/repasse"
	"github.com/estacaoterapia/estacao_backend/internal/service/room"
	"github.com/estacaoterapia/estacao_backend/pkg/agora"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
	"github.com/estacaoterapia/estacao_backend/pkg/cep"
	pasetotoken "github.com/estacaoterapia/estacao_backend/pkg/paseto"
)

type fakeProvider struct{}

func (fakeProvider) RTCToken(_ context.Context, channel string, uid uint32, role agora.Role) (string, error) {
	return "rtc:" + channel + ":" + string(role), nil
}

func (fakeProvider) RTMToken(_ context.Context, userID string) (string, error) {
	return "rtm:" + userID, nil
}

func (fakeProvider) TTL() time.Duration { return 3000 * time.Second }

type fakeResolver map[string]*cep.Address

func (r fakeResolver) Lookup(_ context.Context, code string) (*cep.Address, error) {
	if a, ok := r[code]; ok {
		return a, nil
	}
	return nil, cep.ErrNotFound
}

// roleAuth evaluates DefaultPolicies without a casbin adapter.
type roleAuth struct{}

func (roleAuth) Enforce(_ context.Context, sub authorize.Subject, obj authorize.Resource, act authorize.Action) (bool, error) {
	for _, p := range authorize.DefaultPolicies {
		if p.Subject != sub.Role {
			continue
		}
		if (p.Object == authorize.WildcardResource || p.Object == obj) &&
			(p.Action == authorize.WildcardAction || p.Action == act) {
			return true, nil
		}
	}
	return false, nil
}

func (a roleAuth) MustEnforce(ctx context.Context, sub authorize.Subject, obj authorize.Resource, act authorize.Action) error {
	allowed, _ := a.Enforce(ctx, sub, obj, act)
	if !allowed {
		return authorize.ErrForbidden
	}
	return nil
}

func (roleAuth) AddRoleForUser(context.Context, string, authorize.Role) (bool, error) {
	return false, errors.New("not supported")
}

func (roleAuth) AddPermission(context.Context, authorize.PermissionPolicy) (bool, error) {
	return false, errors.New("not supported")
}

type testServer struct {
	app       *fiber.App
	db        *repotest.Memory
	tokens    *pasetotoken.Manager
	paciente  uuid.UUID
	psicologo uuid.UUID
	admin     uuid.UUID
	consulta  uuid.UUID
	channel   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server:         config.ServerConfig{Environment: "test", TimeoutSeconds: 5},
		Authentication: config.AuthenticationConfig{CookieName: "token"},
		Repasse: config.RepasseConfig{
			PercentPJ: 0.40, PercentAutonomo: 0.32, AntecedenciaHoras: 24, Timezone: "America/Sao_Paulo",
		},
	}

	db := repotest.NewMemory()
	s := &testServer{
		db:        db,
		paciente:  db.AddUser(repo.User{Nome: "Ana", Role: string(authorize.RolePatient)}),
		psicologo: db.AddUser(repo.User{Nome: "Bruno", Role: string(authorize.RolePsychologist), Status: "Ativo", TipoPessoa: lo.ToPtr("Autonomo")}),
		admin:     db.AddUser(repo.User{Nome: "Carla", Role: string(authorize.RoleAdmin)}),
	}
	s.consulta = db.AddConsulta(repo.Consulta{
		PacienteID:  s.paciente,
		PsicologoID: lo.ToPtr(s.psicologo),
		Date:        time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
		Time:        "10:00",
		Valor:       200,
		Status:      "EmAndamento",
	})
	s.channel = room.ChannelName(s.consulta)
	db.AddRoom(repo.ReservaSessao{
		ConsultaID:   s.consulta,
		Status:       "Reservado",
		AgoraChannel: lo.ToPtr(s.channel),
	})

	now := func() time.Time { return time.Date(2026, 3, 10, 13, 5, 0, 0, time.UTC) }
	repSvc, err := repasse.New(db, nil, cfg.Repasse, nil, repasse.WithClock(now))
	require.NoError(t, err)
	consultaSvc, err := consulta.New(db, repSvc, nil, cfg.Repasse, nil, consulta.WithClock(now))
	require.NoError(t, err)

	s.tokens, err = pasetotoken.New(pasetotoken.Config{
		Mode: pasetotoken.ModeLocal, Issuer: "estacao", Audience: "web", AccessTTL: time.Hour,
	}, pasetotoken.NewLocalKeys())
	require.NoError(t, err)

	s.app = NewApp(cfg, nil, false)
	router.NewRouter(router.Params{
		Cfg:         cfg,
		Auth:        roleAuth{},
		PasetoMgr:   s.tokens,
		RoomSvc:     room.New(db, fakeProvider{}, nil, repSvc, nil),
		ConsultaSvc: consultaSvc,
		RepasseSvc:  repSvc,
		AvulsaSvc:   avulsa.New(db, nil),
		AddressSvc: address.New(fakeResolver{
			"01001000": {CEP: "01001-000", Logradouro: "Praça da Sé", Localidade: "São Paulo", UF: "SP"},
		}, nil, time.Hour, nil),
	}).Register(s.app)

	return s
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role authorize.Role) string {
	t.Helper()
	tok, err := s.tokens.Issue(userID, string(role))
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestGenerateTokenErrors(t *testing.T) {
	s := newTestServer(t)
	stranger := s.db.AddUser(repo.User{Nome: "Davi", Role: string(authorize.RolePatient)})

	tests := []struct {
		name   string
		token  string
		body   any
		status int
	}{
		{name: "no session", body: map[string]string{"channelName": s.channel}, status: http.StatusUnauthorized},
		{name: "garbage token", token: "v4.local.nope", body: map[string]string{"channelName": s.channel}, status: http.StatusUnauthorized},
		{name: "missing channel", token: s.token(t, s.paciente, authorize.RolePatient), body: map[string]string{}, status: http.StatusBadRequest},
		{name: "unknown room", token: s.token(t, s.paciente, authorize.RolePatient), body: map[string]string{"channelName": "sala_x"}, status: http.StatusNotFound},
		{name: "not a participant", token: s.token(t, stranger, authorize.RolePatient), body: map[string]string{"channelName": s.channel}, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/room/generate-token", tt.token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestJoinByBothParticipantsWritesLedger(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/room/generate-token", s.token(t, s.paciente, authorize.RolePatient),
		map[string]string{"channelName": s.channel})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "patient", body["role"])
	assert.NotEmpty(t, body["token"])
	assert.NotZero(t, body["uid"])
	assert.Contains(t, body, "participants")
	assert.Nil(t, s.db.Commission(s.consulta))

	status, body = s.do(t, http.MethodPost, "/room/generate-token", s.token(t, s.psicologo, authorize.RolePsychologist),
		map[string]string{"channelName": s.channel})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "psychologist", body["role"])

	assert.Eventually(t, func() bool {
		return s.db.Commission(s.consulta) != nil
	}, 2*time.Second, 10*time.Millisecond)

	row := s.db.Commission(s.consulta)
	assert.InDelta(t, 64.0, row.Valor, 1e-9)
	assert.Equal(t, "2026-03", row.Periodo)
}

func TestSessionCookieIsAccepted(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/room/generate-rtm-token", strings.NewReader(`{"channelName":"`+s.channel+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "token", Value: s.token(t, s.paciente, authorize.RolePatient)})

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rtm:"+s.paciente.String(), out["token"])
}

func TestCheckAndGenerateTokens(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.psicologo, authorize.RolePsychologist)

	status, body := s.do(t, http.MethodPost, "/room/check-and-generate-tokens", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	status, body = s.do(t, http.MethodPost, "/room/check-and-generate-tokens", tok, map[string]string{"consultaId": s.consulta.String()})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["tokensGenerated"])
	assert.Equal(t, s.channel, body["channelName"])
}

func TestGenerateManualToken(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.admin, authorize.RoleAdmin)

	status, body := s.do(t, http.MethodPost, "/room/generate-manual-token", tok, map[string]any{"channelName": "debug", "uid": 42})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "patient", body["role"])
	assert.EqualValues(t, 3000, body["expiresIn"])
	assert.EqualValues(t, 42, body["uid"])

	status, _ = s.do(t, http.MethodPost, "/room/generate-manual-token", tok, map[string]any{"channelName": "debug", "uid": 0})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFinalizarRequiresBothJoinsUnlessForced(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.paciente, authorize.RolePatient)
	path := "/consultas-paciente/finalizar/" + s.consulta.String()

	status, _ := s.do(t, http.MethodPost, path, tok, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := s.do(t, http.MethodPost, path+"?forceFinalize=true", tok, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Realizada", s.db.Consulta(s.consulta).Status)
}

func TestFinalizarRejectsOutsiders(t *testing.T) {
	s := newTestServer(t)
	stranger := s.db.AddUser(repo.User{Nome: "Davi", Role: string(authorize.RolePatient)})
	path := "/consultas-paciente/finalizar/" + s.consulta.String() + "?forceFinalize=true"

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "no session", path: path, status: http.StatusUnauthorized},
		{name: "another patient", path: path, token: s.token(t, stranger, authorize.RolePatient), status: http.StatusForbidden},
		{
			name:   "unknown consulta",
			path:   "/consultas-paciente/finalizar/" + uuid.NewString() + "?forceFinalize=true",
			token:  s.token(t, s.paciente, authorize.RolePatient),
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(t, http.MethodPost, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, status)
		})
	}
	assert.Equal(t, "EmAndamento", s.db.Consulta(s.consulta).Status)

	status, body := s.do(t, http.MethodPost, path, s.token(t, s.psicologo, authorize.RolePsychologist), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Realizada", s.db.Consulta(s.consulta).Status)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/admin/consultas?status=EmAndamento", s.token(t, s.paciente, authorize.RolePatient), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodGet, "/admin/consultas?status=EmAndamento", s.token(t, s.admin, authorize.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["data"], 1)

	status, _ = s.do(t, http.MethodGet, "/admin/consultas", s.token(t, s.admin, authorize.RoleAdmin), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminRecomputesRepasse(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/admin/consultas/"+s.consulta.String()+"/repasse", s.token(t, s.admin, authorize.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, status, body)
	require.NotNil(t, s.db.Commission(s.consulta))

	status, _ = s.do(t, http.MethodPost, "/admin/consultas/"+uuid.NewString()+"/repasse", s.token(t, s.admin, authorize.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAtribuirConsultaAvulsa(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.admin, authorize.RoleAdmin)

	status, body := s.do(t, http.MethodPost, "/admin/atribuir-consulta-avulsa", tok, map[string]any{
		"pacienteId": s.paciente.String(), "quantidade": 2,
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, 1, s.db.AuditCount("consulta_avulsa_atribuida"))

	status, _ = s.do(t, http.MethodPost, "/admin/atribuir-consulta-avulsa", tok, map[string]any{
		"pacienteId": s.paciente.String(), "quantidade": 0,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/admin/atribuir-consulta-avulsa", s.token(t, s.psicologo, authorize.RolePsychologist), map[string]any{
		"pacienteId": s.paciente.String(), "quantidade": 1,
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAddressLookup(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/address/cep/01001-000", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "SP", body["uf"])
	assert.Equal(t, "São Paulo", body["localidade"])

	status, _ = s.do(t, http.MethodGet, "/address/cep/123", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodGet, "/address/cep/99999999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
