package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/dc-tec/wrongsecrets-balancer/internal/admission"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/logging"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

const maxBodyBytes = 4 << 10

var (
	hmacPattern     = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	passcodePattern = regexp.MustCompile(`^[0-9A-Z]{8}$`)
	passwordPattern = regexp.MustCompile(`^[0-9a-zA-Z]{1,64}$`)
)

// joinBody is the JSON body of a join request. Every field is optional.
type joinBody struct {
	HMACValue string `json:"hmacvalue"`
	Passcode  string `json:"passcode"`
	Password  string `json:"password"`
}

func (b joinBody) validate(isAdmin bool) error {
	if b.HMACValue != "" && !hmacPattern.MatchString(b.HMACValue) {
		return errors.New("hmacvalue must be 64 hex characters")
	}
	if b.Passcode != "" && !isAdmin && !passcodePattern.MatchString(b.Passcode) {
		return errors.New("passcode must be 8 uppercase alphanumeric characters")
	}
	if b.Password != "" && !passwordPattern.MatchString(b.Password) {
		return errors.New("password must be at most 64 alphanumeric characters")
	}
	return nil
}

// teamParam returns the validated {team} path value or writes a 400.
func teamParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("team")
	if err := team.ValidateName(name); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return name, true
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("team")
	isAdmin := s.admission.IsAdmin(teamName)
	if !isAdmin {
		if _, ok := teamParam(w, r); !ok {
			return
		}
	}

	var body joinBody
	if err := decodeBody(r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := body.validate(isAdmin); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.admission.Join(r.Context(), admission.JoinRequest{
		Team:     teamName,
		Passcode: body.Passcode,
		Password: body.Password,
		HMAC:     body.HMACValue,
	})
	if err != nil {
		s.writeJoinError(w, teamName, err)
		return
	}

	if err := s.sessions.Issue(w, result.Team); err != nil {
		s.logger.Error(err, "Failed to issue session", "team", result.Team)
		writeMessage(w, http.StatusInternalServerError, "Failed to Create Instance")
		return
	}

	switch result.Outcome {
	case admission.OutcomeAdmin:
		writeMessage(w, http.StatusOK, "Signed in as admin")
	case admission.OutcomeJoined:
		writeMessage(w, http.StatusOK, "Joined Team")
	default:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Created Instance", Passcode: result.Passcode})
	}
}

func (s *Server) writeJoinError(w http.ResponseWriter, teamName string, err error) {
	logger := logging.ForTeam(s.logger, teamName)

	switch {
	case errors.Is(err, operatorerrors.ErrInvalidTeamName):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, operatorerrors.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Team requires authentication to join")
	case errors.Is(err, operatorerrors.ErrCapacityExceeded):
		writeJSON(w, http.StatusInternalServerError, messageResponse{
			Message:     "Reached Maximum Instance Count",
			Description: " Find a Admin to handle this.",
		})
	case errors.Is(err, operatorerrors.ErrInvalidAccessPassword):
		writeMessage(w, http.StatusForbidden, "Go home pizzaboy! https://www.youtube.com/watch?v=qyTj4WnPE9M")
	case errors.Is(err, operatorerrors.ErrInvalidHMAC):
		writeMessage(w, http.StatusForbidden, "Invalid validation, please stop doing this!")
	case errors.Is(err, operatorerrors.ErrProvisioningIncomplete):
		logger.Error(err, "Failed to create team instance")
		writeMessage(w, http.StatusInternalServerError, "Failed to Create Instance")
	case operatorerrors.Class(err) != nil:
		logger.Error(err, "Failed to look up team instance")
		writeMessage(w, http.StatusInternalServerError, "Unknown error while looking for an existing instance.")
	default:
		logger.Error(err, "Failed to create team instance")
		writeMessage(w, http.StatusInternalServerError, "Failed to Create Instance")
	}
}

func (s *Server) handleWaitTillReady(w http.ResponseWriter, r *http.Request) {
	teamName, ok := teamParam(w, r)
	if !ok {
		return
	}

	err := s.instances.AwaitReadiness(r.Context(), teamName)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, operatorerrors.ErrTimeout):
		writeMessage(w, http.StatusInternalServerError, "Waiting for Deployment Readiness Timed Out")
	default:
		logging.ForTeam(s.logger, teamName).Error(err, "Failed to wait for team readiness")
		writeMessage(w, http.StatusInternalServerError, "Failed to Wait For Deployment Readiness")
	}
}

func (s *Server) handleResetPasscode(w http.ResponseWriter, r *http.Request) {
	teamName, err := s.sessions.Team(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "A cookie needs to be set to reset the passcode")
		return
	}
	if s.admission.IsAdmin(teamName) {
		writeMessage(w, http.StatusForbidden, "The admin is not allowed to reset the passcode")
		return
	}

	passcode, err := s.admission.ResetPasscode(r.Context(), teamName)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Reset Passcode", Passcode: passcode})
	case errors.Is(err, operatorerrors.ErrNoInstance):
		writeMessage(w, http.StatusNotFound, "No instance to reset the passcode for.")
	default:
		logging.ForTeam(s.logger, teamName).Error(err, "Failed to reset passcode")
		writeMessage(w, http.StatusInternalServerError, "Unknown error while resetting passcode.")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusOK)
}

// decodeBody decodes an optional JSON body.
func decodeBody(r *http.Request, into any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(into)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid JSON body: %w", err)
}
