// Package apiserver exposes the agent's HTTP surface on a
// net/http.ServeMux, wiring the auth middleware in front of every route
// except /metrics.
package apiserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/persys-dev/persys-agent/pkg/auth"
	"github.com/persys-dev/persys-agent/pkg/composectl"
	"github.com/persys-dev/persys-agent/pkg/cronsurface"
	"github.com/persys-dev/persys-agent/pkg/dispatcher"
	"github.com/persys-dev/persys-agent/pkg/hostprobe"
	"github.com/persys-dev/persys-agent/pkg/identity"
	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/metrics"
	"github.com/persys-dev/persys-agent/pkg/reconciler"
	"github.com/persys-dev/persys-agent/pkg/runtime"
	"github.com/persys-dev/persys-agent/pkg/swarmctl"
	"github.com/persys-dev/persys-agent/pkg/types"
)

// Server bundles the components the HTTP surface dispatches to.
type Server struct {
	NodeID string

	Identity   *identity.Store
	Prober     *hostprobe.Prober
	Runtime    *runtime.Adapter
	Dispatcher *dispatcher.Dispatcher
	Reconciler *reconciler.Reconciler
	Compose    *composectl.Controller
	Cron       *cronsurface.Controller
	Swarm      *swarmctl.Controller

	Auth *auth.Middleware
}

// Handler builds the complete routed, authenticated HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/handshake", s.handleHandshake)

	mux.HandleFunc("/docker/run", s.handleDockerRun)
	mux.HandleFunc("/docker/stop/", s.handleDockerStop)
	mux.HandleFunc("/docker/remove/", s.handleDockerRemove)
	mux.HandleFunc("/docker/logs/", s.handleDockerLogs)
	mux.HandleFunc("/docker/list", s.handleDockerList)
	mux.HandleFunc("/docker/images", s.handleDockerImages)
	mux.HandleFunc("/docker/pull", s.handleDockerPull)
	mux.HandleFunc("/docker/login", s.handleDockerLogin)

	mux.HandleFunc("/compose/run", s.handleComposeRun)
	mux.HandleFunc("/compose/clone", s.handleComposeClone)
	mux.HandleFunc("/compose/stop", s.handleComposeStop)

	mux.HandleFunc("/cron/list", s.handleCronList)
	mux.HandleFunc("/cron/add", s.handleCronAdd)
	mux.HandleFunc("/cron/remove/", s.handleCronRemove)

	mux.HandleFunc("/api/swarm/status", s.handleSwarmStatus)
	mux.HandleFunc("/api/swarm/init", s.handleSwarmInit)
	mux.HandleFunc("/api/swarm/join", s.handleSwarmJoin)
	mux.HandleFunc("/api/swarm/leave", s.handleSwarmLeave)
	mux.HandleFunc("/api/swarm/deploy", s.handleSwarmDeploy)
	mux.HandleFunc("/api/swarm/remove", s.handleSwarmRemove)

	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/", s.handleNotFound)

	return s.Auth.Wrap(mux)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "The URL does not seem to be correct.")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "The HTTP method does not seem to be correct.")
		return false
	}
	return true
}

// pathSuffix extracts the trailing path segment after prefix, e.g.
// pathSuffix("/docker/stop/abc123", "/docker/stop/") -> "abc123".
func pathSuffix(path, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	facts, err := s.Prober.Probe()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodeId":          s.NodeID,
		"status":          hostprobe.Status(facts),
		"availableCpu":    facts.AvailableCPU,
		"availableMemory": facts.AvailableMemoryMiB,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		SchedulerID string `json:"schedulerId"`
		Timestamp   string `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Handshake successful",
		"nodeId":  s.NodeID,
	})
}

func (s *Server) handleDockerRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var spec types.LaunchSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if spec.WorkloadID == "" {
		writeJSONError(w, http.StatusBadRequest, "workloadId is required")
		return
	}
	if spec.Name == "" {
		spec.Name = spec.WorkloadID
	}

	if err := s.Dispatcher.Run(spec); err != nil {
		log.Logger.Error().Err(err).Str("workload_id", spec.WorkloadID).Msg("apiserver: failed to launch workload")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"result":     "Command queued for execution",
		"workloadId": spec.WorkloadID,
	})
}

func (s *Server) handleDockerStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := pathSuffix(r.URL.Path, "/docker/stop/")
	out, err := s.Dispatcher.Stop(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleDockerRemove(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := pathSuffix(r.URL.Path, "/docker/remove/")
	out, err := s.Dispatcher.Remove(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleDockerLogs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id := pathSuffix(r.URL.Path, "/docker/logs/")
	out, err := s.Dispatcher.Logs(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleDockerList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	views, err := s.Reconciler.Reconcile(r.Context(), all)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": views})
}

func (s *Server) handleDockerImages(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	images, err := s.Runtime.ListImages(r.Context(), all)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]types.ImageView, 0, len(images))
	for _, img := range images {
		views = append(views, types.ImageView{ID: img.ID, Repository: img.Repository, Tag: img.Tag, Size: img.Size})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": views})
}

func (s *Server) handleDockerPull(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := s.Runtime.PullImage(r.Context(), body.Image)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleDockerLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Registry string `json:"registry"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	_, out, err := s.Runtime.LoginToRegistry(r.Context(), body.Registry, body.Username, body.Password)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleComposeRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		ComposeDir   string            `json:"composeDir"`
		EnvVariables map[string]string `json:"envVariables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := s.Compose.Run(r.Context(), body.ComposeDir, body.EnvVariables)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleComposeClone(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		RepoURL   string `json:"repoUrl"`
		Branch    string `json:"branch"`
		AuthToken string `json:"authToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	dir, out, err := s.Compose.Clone(r.Context(), body.RepoURL, body.Branch, body.AuthToken)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out, "composeDir": dir})
}

func (s *Server) handleComposeStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		ComposeDir string `json:"composeDir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := s.Compose.Stop(r.Context(), body.ComposeDir)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleCronList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	lines, err := s.Cron.List(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": lines})
}

func (s *Server) handleCronAdd(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Schedule string `json:"schedule"`
		Command  string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.Cron.Add(r.Context(), body.Schedule, body.Command); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "job added"})
}

func (s *Server) handleCronRemove(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := pathSuffix(r.URL.Path, "/cron/remove/")
	if err := s.Cron.Remove(r.Context(), jobID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "job removed"})
}

func (s *Server) handleSwarmStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	out, err := s.Swarm.Status(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleSwarmInit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		AdvertiseAddr string `json:"advertiseAddr"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	out, err := s.Swarm.Init(r.Context(), body.AdvertiseAddr)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleSwarmJoin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Token      string `json:"token"`
		RemoteAddr string `json:"remoteAddr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := s.Swarm.Join(r.Context(), body.Token, body.RemoteAddr)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleSwarmLeave(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	out, err := s.Swarm.Leave(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleSwarmDeploy(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		StackName   string `json:"stackName"`
		ComposeFile string `json:"composeFile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := s.Swarm.Deploy(r.Context(), body.StackName, body.ComposeFile)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}

func (s *Server) handleSwarmRemove(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		StackName string `json:"stackName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := s.Swarm.Remove(r.Context(), body.StackName)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": out})
}
