package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistorias/pkg/apperr"
	"vistorias/pkg/auth"
	"vistorias/pkg/cep"
	"vistorias/pkg/db"
	"vistorias/pkg/model"
	"vistorias/pkg/notify"
	"vistorias/pkg/storage"
	"vistorias/pkg/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Publish(ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) tipos() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeCEP struct{}

func (fakeCEP) Lookup(_ context.Context, raw string) (cep.Resultado, error) {
	if raw == "88301000" {
		return cep.Resultado{CEP: raw, Logradouro: "Rua Hercílio Luz", Cidade: "Itajaí", Estado: "SC"}, nil
	}
	return cep.Resultado{}, apperr.NotFound("CEP")
}

type env struct {
	t       *testing.T
	srv     *httptest.Server
	api     *Server
	st      *store.Store
	issuer  *auth.Issuer
	objects *storage.LocalStore
	events  *recordingNotifier
	dir     string

	admin, vist       model.Usuario
	adminTok, vistTok string
	embarcacao        model.Embarcacao
}

func newServer(t *testing.T) *env {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	_, err = db.Seed(gdb, db.SeedOptions{})
	require.NoError(t, err)

	dir := t.TempDir()
	objects, err := storage.NewLocalStore(storage.LocalOptions{Root: dir, URLPrefix: "/uploads", Secret: "upload-secret", TTL: time.Minute})
	require.NoError(t, err)

	e := &env{
		t:       t,
		st:      store.New(gdb),
		issuer:  auth.NewIssuer("test-secret", time.Hour),
		objects: objects,
		events:  &recordingNotifier{},
		dir:     dir,
	}
	e.api = New(Deps{
		Store:          e.st,
		Issuer:         e.issuer,
		Objects:        objects,
		CEP:            fakeCEP{},
		Notify:         e.events,
		Uploads:        objects,
		MaxUploadBytes: 2 << 20,
		Empresa:        "Teste Vistorias",
	})
	e.srv = httptest.NewServer(e.api.Handler())
	t.Cleanup(e.srv.Close)
	return e
}

func newEnv(t *testing.T) *env {
	e := newServer(t)
	e.admin = e.usuario("Ana Admin", "ana@x.com", model.NivelAdmin)
	e.vist = e.usuario("Vitor", "vitor@x.com", model.NivelVistoriador)
	e.adminTok = e.token(e.admin)
	e.vistTok = e.token(e.vist)

	var emb model.Embarcacao
	e.doJSON(http.MethodPost, "/api/embarcacoes", e.adminTok, map[string]interface{}{
		"nome": "Maré Alta", "nrInscricaoBarco": "abc-123", "tipoEmbarcacao": "lancha", "valorEmbarcacao": 250000,
	}, http.StatusCreated, &emb)
	e.embarcacao = emb
	return e
}

func (e *env) usuario(nome, email string, nivel uint) model.Usuario {
	hash, err := auth.HashPassword("segredo1")
	require.NoError(e.t, err)
	u := model.Usuario{Nome: nome, Email: email, SenhaHash: hash, NivelAcessoID: nivel, Ativo: true}
	require.NoError(e.t, e.st.CreateUsuario(context.Background(), &u))
	return u
}

func (e *env) token(u model.Usuario) string {
	tok, err := e.issuer.Generate(u)
	require.NoError(e.t, err)
	return tok
}

func (e *env) do(method, path, token, contentType string, body io.Reader) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// doJSON sends body as JSON, asserts the status and decodes into out when set.
func (e *env) doJSON(method, path, token string, body interface{}, status int, out interface{}) *http.Response {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	resp := e.do(method, path, token, "application/json", r)
	if !assert.Equal(e.t, status, resp.StatusCode, "%s %s", method, path) {
		b, _ := io.ReadAll(resp.Body)
		e.t.Fatalf("body: %s", b)
	}
	if out != nil {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (e *env) upload(path, token, filename string, data []byte, fields map[string]string) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("foto", filename)
	require.NoError(e.t, err)
	_, err = fw.Write(data)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())
	return e.do(http.MethodPost, path, token, mw.FormDataContentType(), &buf)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 120, B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (e *env) novaVistoria() model.Vistoria {
	e.t.Helper()
	var v model.Vistoria
	e.doJSON(http.MethodPost, "/api/vistorias", e.adminTok, map[string]interface{}{
		"embarcacaoId":     e.embarcacao.ID,
		"vistoriadorId":    e.vist.ID,
		"valorVistoria":    300,
		"valorVistoriador": 150.5,
	}, http.StatusCreated, &v)
	return v
}

func errorCode(t *testing.T, resp *http.Response) apperr.Code {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Message)
	return body.Error
}

func TestHealthz(t *testing.T) {
	e := newServer(t)
	var body map[string]string
	e.doJSON(http.MethodGet, "/healthz", "", nil, http.StatusOK, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterFirstUserOnly(t *testing.T) {
	e := newServer(t)
	var out authResponse
	e.doJSON(http.MethodPost, "/api/auth/register", "", authRequest{Nome: "Primeira", Email: "Primeira@X.com", Senha: "segredo1"}, http.StatusCreated, &out)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "primeira@x.com", out.Usuario.Email)
	assert.True(t, out.Usuario.IsAdmin())

	resp := e.doJSON(http.MethodPost, "/api/auth/register", "", authRequest{Nome: "Outra", Email: "o@x.com", Senha: "segredo1"}, http.StatusForbidden, nil)
	assert.Equal(t, apperr.CodeForbidden, errorCode(t, resp))
}

func TestLoginMeESenha(t *testing.T) {
	e := newEnv(t)
	resp := e.doJSON(http.MethodPost, "/api/auth/login", "", authRequest{Email: "vitor@x.com", Senha: "errada"}, http.StatusUnauthorized, nil)
	assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, resp))

	var out authResponse
	e.doJSON(http.MethodPost, "/api/auth/login", "", authRequest{Email: "VITOR@x.com", Senha: "segredo1"}, http.StatusOK, &out)
	require.NotEmpty(t, out.Token)

	var me model.Usuario
	e.doJSON(http.MethodGet, "/api/auth/me", out.Token, nil, http.StatusOK, &me)
	assert.Equal(t, e.vist.ID, me.ID)

	e.doJSON(http.MethodPut, "/api/auth/senha", out.Token, senhaRequest{SenhaAtual: "x", NovaSenha: "novasenha"}, http.StatusUnauthorized, nil)
	e.doJSON(http.MethodPut, "/api/auth/senha", out.Token, senhaRequest{SenhaAtual: "segredo1", NovaSenha: "novasenha"}, http.StatusNoContent, nil)
	e.doJSON(http.MethodPost, "/api/auth/login", "", authRequest{Email: "vitor@x.com", Senha: "novasenha"}, http.StatusOK, nil)

	e.doJSON(http.MethodPatch, fmt.Sprintf("/api/usuarios/%d/ativo", e.vist.ID), e.adminTok, map[string]bool{"ativo": false}, http.StatusOK, nil)
	e.doJSON(http.MethodPost, "/api/auth/login", "", authRequest{Email: "vitor@x.com", Senha: "novasenha"}, http.StatusForbidden, nil)
}

func TestAuthorization(t *testing.T) {
	e := newEnv(t)
	resp := e.doJSON(http.MethodGet, "/api/clientes", "", nil, http.StatusUnauthorized, nil)
	assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, resp))
	e.doJSON(http.MethodGet, "/api/clientes", "garbage", nil, http.StatusUnauthorized, nil)

	e.doJSON(http.MethodGet, "/api/clientes", e.vistTok, nil, http.StatusOK, nil)
	resp = e.doJSON(http.MethodPost, "/api/clientes", e.vistTok, map[string]string{"nome": "X"}, http.StatusForbidden, nil)
	assert.Equal(t, apperr.CodeForbidden, errorCode(t, resp))
	e.doJSON(http.MethodGet, "/api/usuarios", e.vistTok, nil, http.StatusForbidden, nil)
	e.doJSON(http.MethodGet, "/api/auditoria", e.vistTok, nil, http.StatusForbidden, nil)
}

func TestTokenFollowsUsuarioAtual(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	chefe := e.usuario("Chefe", "chefe@x.com", model.NivelAdmin)
	tok := e.token(chefe)
	e.doJSON(http.MethodGet, "/api/usuarios", tok, nil, http.StatusOK, nil)

	chefe.NivelAcessoID = model.NivelVistoriador
	require.NoError(t, e.st.UpdateUsuario(ctx, &chefe))
	resp := e.doJSON(http.MethodGet, "/api/usuarios", tok, nil, http.StatusForbidden, nil)
	assert.Equal(t, apperr.CodeForbidden, errorCode(t, resp))
	e.doJSON(http.MethodPost, fmt.Sprintf("/api/usuarios/%d/reset-senha", e.vist.ID), tok, nil, http.StatusForbidden, nil)
	e.doJSON(http.MethodGet, "/api/auth/me", tok, nil, http.StatusOK, nil)

	require.NoError(t, e.st.SetUsuarioAtivo(ctx, chefe.ID, false))
	resp = e.doJSON(http.MethodGet, "/api/auth/me", tok, nil, http.StatusUnauthorized, nil)
	assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, resp))

	ghost := model.Usuario{ID: 9999, Nome: "Ninguém", Email: "n@x.com", NivelAcessoID: model.NivelAdmin, Ativo: true}
	e.doJSON(http.MethodGet, "/api/usuarios", e.token(ghost), nil, http.StatusUnauthorized, nil)
}

func TestDevolverSoAdmin(t *testing.T) {
	e := newEnv(t)
	v := e.novaVistoria()
	path := fmt.Sprintf("/api/vistorias/%d", v.ID)
	e.doJSON(http.MethodPost, path+"/iniciar", e.vistTok, nil, http.StatusOK, nil)

	resp := e.doJSON(http.MethodPost, path+"/devolver", e.vistTok, nil, http.StatusForbidden, nil)
	assert.Equal(t, apperr.CodeForbidden, errorCode(t, resp))

	var out model.Vistoria
	e.doJSON(http.MethodPost, path+"/devolver", e.adminTok, nil, http.StatusOK, &out)
	assert.Equal(t, model.StatusPendente, out.Status)
}

func TestClienteCRUD(t *testing.T) {
	e := newEnv(t)
	resp := e.doJSON(http.MethodPost, "/api/clientes", e.adminTok, map[string]string{"nome": "Carlos", "cpf": "111.111.111-11"}, http.StatusBadRequest, nil)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, resp))

	var c model.Cliente
	e.doJSON(http.MethodPost, "/api/clientes", e.adminTok, map[string]string{
		"nome": "Carlos", "cpf": "529.982.247-25", "cep": "88301-000", "estado": "sc",
	}, http.StatusCreated, &c)
	require.NotNil(t, c.CPF)
	assert.Equal(t, "52998224725", *c.CPF)
	assert.Equal(t, "88301000", c.CEP)
	assert.Equal(t, "SC", c.Estado)

	resp = e.doJSON(http.MethodPost, "/api/clientes", e.adminTok, map[string]string{"nome": "Dup", "cpf": "52998224725"}, http.StatusConflict, nil)
	assert.Equal(t, apperr.CodeAlreadyExists, errorCode(t, resp))

	var found model.Cliente
	e.doJSON(http.MethodGet, "/api/clientes/documento/529.982.247-25", e.vistTok, nil, http.StatusOK, &found)
	assert.Equal(t, c.ID, found.ID)

	var list struct {
		Items []model.Cliente `json:"items"`
		Total int64           `json:"total"`
	}
	e.doJSON(http.MethodGet, "/api/clientes?busca=carl", e.adminTok, nil, http.StatusOK, &list)
	assert.EqualValues(t, 1, list.Total)

	e.doJSON(http.MethodDelete, fmt.Sprintf("/api/clientes/%d", c.ID), e.adminTok, nil, http.StatusNoContent, nil)
	e.doJSON(http.MethodGet, fmt.Sprintf("/api/clientes/%d", c.ID), e.adminTok, nil, http.StatusNotFound, nil)

	var audit struct {
		Items []model.AuditoriaLog `json:"items"`
	}
	e.doJSON(http.MethodGet, "/api/auditoria?entidade=cliente", e.adminTok, nil, http.StatusOK, &audit)
	require.Len(t, audit.Items, 2)
	assert.Equal(t, "EXCLUIR", audit.Items[0].Acao)
}

func TestSeguradoraTipos(t *testing.T) {
	e := newEnv(t)
	var sg model.Seguradora
	e.doJSON(http.MethodPost, "/api/seguradoras", e.adminTok, seguradoraRequest{Nome: "Mar Seguros", TiposPermitidos: []string{"jet_ski"}}, http.StatusCreated, &sg)

	var tipos []string
	e.doJSON(http.MethodGet, fmt.Sprintf("/api/seguradoras/%d/tipos", sg.ID), e.vistTok, nil, http.StatusOK, &tipos)
	assert.Equal(t, []string{model.TipoJetSki}, tipos)

	resp := e.doJSON(http.MethodPost, "/api/embarcacoes", e.adminTok, map[string]interface{}{
		"nome": "Lanchinha", "nrInscricaoBarco": "L-1", "tipoEmbarcacao": "LANCHA", "seguradoraId": sg.ID,
	}, http.StatusBadRequest, nil)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, resp))
}

func TestCEP(t *testing.T) {
	e := newEnv(t)
	var res cep.Resultado
	e.doJSON(http.MethodGet, "/api/cep/88301000", e.vistTok, nil, http.StatusOK, &res)
	assert.Equal(t, "Itajaí", res.Cidade)
	e.doJSON(http.MethodGet, "/api/cep/00000000", e.vistTok, nil, http.StatusNotFound, nil)
}

func TestVistoriaWizardEDono(t *testing.T) {
	e := newEnv(t)
	var v model.Vistoria
	e.doJSON(http.MethodPost, "/api/vistorias", e.adminTok, map[string]interface{}{
		"vistoriadorId":    e.vist.ID,
		"valorVistoriador": 100,
		"cliente":          map[string]string{"nome": "Beatriz", "cpf": "529.982.247-25"},
		"embarcacao":       map[string]interface{}{"nome": "Brisa", "nrInscricaoBarco": "BR-9", "tipoEmbarcacao": "VELEIRO"},
		"local":            map[string]string{"tipo": "MARINA", "nomeLocal": "Marina Sul", "cidade": "Itajaí", "estado": "SC"},
	}, http.StatusCreated, &v)
	require.NotNil(t, v.Embarcacao)
	require.NotNil(t, v.Embarcacao.Cliente)
	assert.Equal(t, "Beatriz", v.Embarcacao.Cliente.Nome)
	require.NotNil(t, v.Local)
	assert.Equal(t, model.StatusPendente, v.Status)
	assert.Equal(t, e.admin.ID, v.AdministradorID)
	assert.Contains(t, e.events.tipos(), notify.EventVistoriaAtribuida)

	// Same document again reuses the client.
	var v2 model.Vistoria
	e.doJSON(http.MethodPost, "/api/vistorias", e.adminTok, map[string]interface{}{
		"vistoriadorId": e.vist.ID,
		"cliente":       map[string]string{"nome": "Beatriz S.", "cpf": "52998224725"},
		"embarcacao":    map[string]interface{}{"nome": "Brisa II", "nrInscricaoBarco": "BR-10", "tipoEmbarcacao": "VELEIRO"},
	}, http.StatusCreated, &v2)
	assert.Equal(t, *v.Embarcacao.ClienteID, *v2.Embarcacao.ClienteID)

	outro := e.usuario("Olga", "olga@x.com", model.NivelVistoriador)
	outroTok := e.token(outro)
	path := fmt.Sprintf("/api/vistorias/%d", v.ID)
	e.doJSON(http.MethodGet, path, outroTok, nil, http.StatusNotFound, nil)
	e.doJSON(http.MethodGet, path, e.vistTok, nil, http.StatusOK, nil)
	e.doJSON(http.MethodPost, path+"/iniciar", outroTok, nil, http.StatusNotFound, nil)

	var mine struct {
		Total int64 `json:"total"`
	}
	e.doJSON(http.MethodGet, "/api/vistorias", outroTok, nil, http.StatusOK, &mine)
	assert.Zero(t, mine.Total)
	e.doJSON(http.MethodGet, "/api/vistoriador/vistorias", e.vistTok, nil, http.StatusOK, &mine)
	assert.EqualValues(t, 2, mine.Total)

	e.doJSON(http.MethodPost, path+"/aprovar", e.vistTok, nil, http.StatusForbidden, nil)
	e.doJSON(http.MethodPost, path+"/aprovar", e.adminTok, nil, http.StatusConflict, nil)
}

func TestUploadFotoCasaChecklist(t *testing.T) {
	e := newEnv(t)
	v := e.novaVistoria()
	path := fmt.Sprintf("/api/vistorias/%d/fotos", v.ID)

	resp := e.upload(path, e.vistTok, "proa.txt", []byte("not an image at all"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.upload(path, e.vistTok, "Proa.png", pngBytes(t), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out fotoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Item, "file name matches the Proa item")
	assert.Equal(t, "Proa", out.Item.Nome)
	assert.Equal(t, model.ItemConcluido, out.Item.Status)
	assert.Equal(t, fmt.Sprintf("vistorias/%d/checklist/02-proa-%d.png", v.ID, out.Foto.ID), out.Foto.Chave)
	assert.True(t, strings.HasPrefix(out.Foto.URL, "/uploads/"))
	_, err := os.Stat(filepath.Join(e.dir, filepath.FromSlash(out.Foto.Chave)))
	assert.NoError(t, err, "object renamed on disk")

	img := e.do(http.MethodGet, out.Foto.URL, "", "", nil)
	assert.Equal(t, http.StatusOK, img.StatusCode, "signed URL works without a bearer token")
	plain := strings.SplitN(out.Foto.URL, "?", 2)[0]
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, plain, "", "", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/uploads/", "", "", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, fmt.Sprintf("/uploads/vistorias/%d/", v.ID), "", "", nil).StatusCode)
	require.NotNil(t, out.Progresso)
	assert.Equal(t, 1, out.Progresso.Concluidos)

	var cur model.Vistoria
	e.doJSON(http.MethodGet, fmt.Sprintf("/api/vistorias/%d", v.ID), e.vistTok, nil, http.StatusOK, &cur)
	assert.Equal(t, model.StatusEmAndamento, cur.Status, "upload starts a pending vistoria")

	// Proa is taken; a second proa photo stays unlinked.
	resp = e.upload(path, e.vistTok, "proa.png", pngBytes(t), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second fotoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	assert.Nil(t, second.Item)
	assert.Contains(t, second.Foto.Chave, "/fotos/")

	// Deleting the linked photo reverts the item.
	e.doJSON(http.MethodDelete, fmt.Sprintf("/api/fotos/%d", out.Foto.ID), e.vistTok, nil, http.StatusNoContent, nil)
	_, err = os.Stat(filepath.Join(e.dir, filepath.FromSlash(out.Foto.Chave)))
	assert.True(t, os.IsNotExist(err))
	var cl checklistResponse
	e.doJSON(http.MethodGet, fmt.Sprintf("/api/vistorias/%d/checklist", v.ID), e.vistTok, nil, http.StatusOK, &cl)
	for _, it := range cl.Itens {
		if it.Nome == "Proa" {
			assert.Equal(t, model.ItemPendente, it.Status)
		}
	}
	assert.Contains(t, e.events.tipos(), notify.EventFotoAdicionada)
}

func TestDescartarFoto(t *testing.T) {
	e := newEnv(t)
	v := e.novaVistoria()
	resp := e.upload(fmt.Sprintf("/api/vistorias/%d/fotos", v.ID), e.vistTok, "paisagem.png", pngBytes(t), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out fotoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Nil(t, out.Item)
	file := filepath.Join(e.dir, filepath.FromSlash(out.Foto.Chave))
	_, err := os.Stat(file)
	require.NoError(t, err)

	e.api.descartarFoto(context.Background(), out.Foto)
	_, err = e.st.GetFoto(context.Background(), out.Foto.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

func TestFluxoCompleto(t *testing.T) {
	e := newEnv(t)
	v := e.novaVistoria()
	base := fmt.Sprintf("/api/vistorias/%d", v.ID)

	e.doJSON(http.MethodPost, base+"/iniciar", e.vistTok, nil, http.StatusOK, nil)
	e.doJSON(http.MethodPut, base+"/rascunho", e.vistTok, map[string]string{"etapa": "fotos"}, http.StatusOK, nil)

	resp := e.doJSON(http.MethodPost, base+"/concluir", e.vistTok, nil, http.StatusConflict, nil)
	assert.Equal(t, apperr.CodeConflict, errorCode(t, resp))

	var cl checklistResponse
	e.doJSON(http.MethodGet, base+"/checklist", e.vistTok, nil, http.StatusOK, &cl)
	for _, it := range cl.Itens {
		if !it.Obrigatorio {
			continue
		}
		resp := e.upload(base+"/fotos", e.vistTok, "img.png", pngBytes(t), map[string]string{"checklistItemId": fmt.Sprint(it.ID)})
		require.Equal(t, http.StatusCreated, resp.StatusCode, it.Nome)
	}
	var prog struct {
		PodeConcluir bool `json:"podeConcluir"`
	}
	e.doJSON(http.MethodGet, base+"/checklist/progresso", e.vistTok, nil, http.StatusOK, &prog)
	assert.True(t, prog.PodeConcluir)

	var done model.Vistoria
	e.doJSON(http.MethodPost, base+"/concluir", e.vistTok, map[string]string{"observacoes": "ok"}, http.StatusOK, &done)
	assert.Equal(t, model.StatusConcluida, done.Status)
	require.NotNil(t, done.DataConclusao)

	var l model.Laudo
	e.doJSON(http.MethodPost, base+"/laudo", e.adminTok, map[string]string{"conclusao": "Apta"}, http.StatusCreated, &l)
	assert.Regexp(t, `^LN-\d{6}-\d{6}$`, l.NumeroLaudo)
	assert.Equal(t, "Apta", l.Conclusao)
	assert.NotEmpty(t, l.URLPDF)

	pdf := e.do(http.MethodGet, fmt.Sprintf("/api/laudos/%d/pdf", l.ID), e.vistTok, "", nil)
	require.Equal(t, http.StatusOK, pdf.StatusCode)
	assert.Equal(t, "application/pdf", pdf.Header.Get("Content-Type"))
	b, err := io.ReadAll(pdf.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))

	e.doJSON(http.MethodPut, fmt.Sprintf("/api/laudos/%d", l.ID), e.vistTok, map[string]string{"casco": "Sem avarias"}, http.StatusOK, &l)
	assert.Equal(t, "Sem avarias", l.Casco)
	assert.Equal(t, "Apta", l.Conclusao)

	var pend pendentesResponse
	e.doJSON(http.MethodGet, "/api/pagamentos/pendentes?periodo=MENSAL", e.vistTok, nil, http.StatusOK, &pend)
	assert.Equal(t, 1, pend.Quantidade)
	assert.InDelta(t, 150.5, pend.Total, 0.001)

	var lote model.LotePagamento
	e.doJSON(http.MethodPost, "/api/pagamentos/lotes", e.adminTok, loteRequest{VistoriadorID: e.vist.ID, PeriodoTipo: "mensal"}, http.StatusCreated, &lote)
	assert.Equal(t, 1, lote.QuantidadeVistorias)
	assert.Equal(t, model.LotePendente, lote.Status)
	e.doJSON(http.MethodPost, "/api/pagamentos/lotes", e.adminTok, loteRequest{VistoriadorID: e.vist.ID}, http.StatusBadRequest, nil)

	e.doJSON(http.MethodPost, base+"/reabrir", e.adminTok, nil, http.StatusConflict, nil)

	csvResp := e.do(http.MethodGet, fmt.Sprintf("/api/pagamentos/lotes/%d/csv", lote.ID), e.vistTok, "", nil)
	require.Equal(t, http.StatusOK, csvResp.StatusCode)
	csv, err := io.ReadAll(csvResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(csv), "150,50")

	e.doJSON(http.MethodPost, fmt.Sprintf("/api/pagamentos/lotes/%d/pagar", lote.ID), e.adminTok, pagarRequest{}, http.StatusBadRequest, nil)
	e.doJSON(http.MethodPost, fmt.Sprintf("/api/pagamentos/lotes/%d/pagar", lote.ID), e.adminTok, pagarRequest{FormaPagamento: "pix"}, http.StatusOK, &lote)
	assert.Equal(t, model.LotePago, lote.Status)
	assert.Equal(t, "PIX", lote.FormaPagamento)
	e.doJSON(http.MethodPost, fmt.Sprintf("/api/pagamentos/lotes/%d/cancelar", lote.ID), e.adminTok, nil, http.StatusConflict, nil)

	var resumo []store.ResumoVistoriador
	e.doJSON(http.MethodGet, "/api/pagamentos/resumo", e.vistTok, nil, http.StatusOK, &resumo)
	require.Len(t, resumo, 1)
	assert.InDelta(t, 150.5, resumo[0].ValorPago, 0.001)

	var dash store.Dashboard
	e.doJSON(http.MethodGet, "/api/dashboard", e.adminTok, nil, http.StatusOK, &dash)
	assert.EqualValues(t, 1, dash.PorStatus[model.StatusConcluida])

	tipos := e.events.tipos()
	assert.Contains(t, tipos, notify.EventLaudoGerado)
	assert.Contains(t, tipos, notify.EventLotePago)
}

func TestPagarComComprovante(t *testing.T) {
	e := newEnv(t)
	v := e.novaVistoria()
	base := fmt.Sprintf("/api/vistorias/%d", v.ID)
	e.doJSON(http.MethodPost, base+"/iniciar", e.vistTok, nil, http.StatusOK, nil)
	var cl checklistResponse
	e.doJSON(http.MethodGet, base+"/checklist", e.vistTok, nil, http.StatusOK, &cl)
	for _, it := range cl.Itens {
		if it.Obrigatorio {
			_, err := e.st.AtualizarItemChecklist(context.Background(), v.ID, it.ID, model.ItemNaoAplicavel, "")
			require.Error(t, err, "mandatory items cannot be skipped")
			foto := model.Foto{VistoriaID: v.ID, Chave: "x", ContentType: "image/png"}
			require.NoError(t, e.st.CreateFoto(context.Background(), &foto))
			_, err = e.st.VincularFoto(context.Background(), foto.ID, it.ID)
			require.NoError(t, err)
		}
	}
	e.doJSON(http.MethodPost, base+"/concluir", e.vistTok, nil, http.StatusOK, nil)

	var lote model.LotePagamento
	e.doJSON(http.MethodPost, "/api/pagamentos/lotes", e.adminTok, loteRequest{VistoriadorID: e.vist.ID, PeriodoTipo: "DIARIO"}, http.StatusCreated, &lote)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("formaPagamento", "TED"))
	require.NoError(t, mw.WriteField("dataPagamento", "2024-05-10"))
	fw, err := mw.CreateFormFile("comprovante", "comprovante.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	resp := e.do(http.MethodPost, fmt.Sprintf("/api/pagamentos/lotes/%d/pagar", lote.ID), e.adminTok, mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lote))
	assert.Equal(t, model.LotePago, lote.Status)
	assert.Contains(t, lote.ComprovanteURL, fmt.Sprintf("/uploads/pagamentos/%d/", lote.ID))
	require.NotNil(t, lote.DataPagamento)
	assert.Equal(t, 10, lote.DataPagamento.Day())

	outro := e.usuario("Olga", "olga@x.com", model.NivelVistoriador)
	e.doJSON(http.MethodGet, fmt.Sprintf("/api/pagamentos/lotes/%d", lote.ID), e.token(outro), nil, http.StatusNotFound, nil)
}

func TestCORSPreflight(t *testing.T) {
	e := newServer(t)
	srv := New(Deps{Store: e.st, Issuer: e.issuer, Objects: e.objects, CORSOrigin: "https://app.example"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/clientes", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
