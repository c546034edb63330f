package httpapi

import (
	"errors"
	"net/http"

	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/logging"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
)

// instanceView is one entry of the admin listing. Times are Unix milliseconds.
type instanceView struct {
	Team        string `json:"team"`
	Name        string `json:"name"`
	Ready       bool   `json:"ready"`
	CreatedAt   int64  `json:"createdAt"`
	LastConnect *int64 `json:"lastConnect"`
}

type instanceList struct {
	Instances []instanceView `json:"instances"`
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	records, err := s.instances.List(r.Context())
	if err != nil {
		s.logger.Error(err, "Failed to list instances")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	list := instanceList{Instances: make([]instanceView, 0, len(records))}
	for _, record := range records {
		view := instanceView{
			Team:      record.Team,
			Name:      record.Name,
			Ready:     record.Ready(),
			CreatedAt: record.CreatedAt.UnixMilli(),
		}
		if !record.LastRequest.IsZero() {
			lastConnect := record.LastRequest.UnixMilli()
			view.LastConnect = &lastConnect
		}
		list.Instances = append(list.Instances, view)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	teamName, ok := teamParam(w, r)
	if !ok {
		return
	}
	s.writeAdminResult(w, teamName, "restart", s.instances.RestartWorkload(r.Context(), teamName))
}

func (s *Server) handleRestartDesktop(w http.ResponseWriter, r *http.Request) {
	teamName, ok := teamParam(w, r)
	if !ok {
		return
	}
	s.writeAdminResult(w, teamName, "restart desktop", s.instances.RestartDesktop(r.Context(), teamName))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	teamName, ok := teamParam(w, r)
	if !ok {
		return
	}

	err := s.instances.Delete(r.Context(), teamName)
	if err == nil {
		monitoring.RecordTeamDeleted(monitoring.DeleteReasonAdmin)
	}
	s.writeAdminResult(w, teamName, "delete", err)
}

func (s *Server) writeAdminResult(w http.ResponseWriter, teamName, action string, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, operatorerrors.ErrNoInstance):
		writeMessage(w, http.StatusNotFound, "No instance for team "+teamName)
	default:
		logging.ForTeam(s.logger, teamName).Error(err, "Admin operation failed", "action", action)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
