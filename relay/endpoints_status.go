package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aprendeyjuega/asset-relay/internal/api"
	"github.com/aprendeyjuega/asset-relay/internal/logging"
	"github.com/aprendeyjuega/asset-relay/internal/offline"
	"github.com/aprendeyjuega/asset-relay/internal/util"
)

func statusHandler(relay *Relay) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeStatus(w, http.StatusOK, relay.statusRep(req.Context()))
	})
}

// updateHandler re-reads the manifest source and registers its version, responding once the version has
// installed (and, if it did not have to wait, activated).
func updateHandler(relay *Relay) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		relay.lock.RLock()
		closed := relay.closed
		relay.lock.RUnlock()
		if closed {
			writeError(w, http.StatusServiceUnavailable, errAlreadyClosed)
			return
		}
		m, err := relay.currentManifest()
		if err != nil {
			logging.GetGlobalContextLoggers(req.Context()).Errorf(logMsgRegisterFailed, relay.config.Cache.Version, err)
			writeError(w, http.StatusInternalServerError, errManifestFailed(err))
			return
		}
		relay.loggers.Infof(logMsgRegistering, m.Version)
		if _, err := relay.registration.Register(req.Context(), m); err != nil {
			logging.GetGlobalContextLoggers(req.Context()).Errorf(logMsgRegisterFailed, m.Version, err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeStatus(w, http.StatusOK, relay.statusRep(req.Context()))
	})
}

// skipWaitingHandler activates the waiting cache version immediately.
func skipWaitingHandler(relay *Relay) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := relay.registration.SkipWaiting(req.Context()); err != nil {
			status := http.StatusInternalServerError
			if offline.IsNoWaitingWorker(err) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}
		writeStatus(w, http.StatusOK, relay.statusRep(req.Context()))
	})
}

func (r *Relay) statusRep(ctx context.Context) api.StatusRep {
	status := r.registration.Status(ctx)
	rep := api.StatusRep{
		Version:      r.version,
		CacheVersion: r.config.Cache.Version,
		Active:       workerRep(status.Active),
		Waiting:      workerRep(status.Waiting),
		Storage: api.StorageRep{
			Kind:      status.StorageKind,
			Available: status.StorageAvailable,
			Stores:    status.StoreTags,
		},
	}
	if rep.Active != nil {
		rep.CacheVersion = rep.Active.Version
	}
	if rep.Storage.Stores == nil {
		rep.Storage.Stores = []string{}
	}
	if rep.Active != nil && rep.Storage.Available {
		rep.Status = api.StatusHealthy
	} else {
		rep.Status = api.StatusDegraded
	}
	return rep
}

// statusJSON is used by the lifecycle stream for the initial event of each connection.
func (r *Relay) statusJSON() []byte {
	data, _ := json.Marshal(r.statusRep(r.ctx))
	return data
}

func workerRep(ws *offline.WorkerStatus) *api.WorkerRep {
	if ws == nil {
		return nil
	}
	return &api.WorkerRep{
		ID:       ws.ID,
		Version:  ws.Version,
		State:    ws.State.String(),
		InFlight: ws.InFlight,
	}
}

func writeStatus(w http.ResponseWriter, statusCode int, rep api.StatusRep) {
	data, _ := json.Marshal(rep)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(util.ErrorJSONMsg(err.Error()))
}
