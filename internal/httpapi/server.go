// Package httpapi exposes the reminder engine over HTTP. The surface
// mirrors the chat bot: reminders are configured, completions recorded
// and due pings listed through small JSON endpoints guarded by a shared
// API key.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/pingview"
	"github.com/stefs/evelyn-reminder/internal/reminder"
)

type Server struct {
	engine *engine.Engine
	apiKey string
	now    func() time.Time
}

func NewServer(eng *engine.Engine, apiKey string) *Server {
	return &Server{
		engine: eng,
		apiKey: apiKey,
		now:    time.Now,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requireAPIKey)
	r.HandleFunc("/reminder", s.handleListReminders).Methods(http.MethodGet)
	r.HandleFunc("/reminder", s.handlePutReminder).Methods(http.MethodPut)
	r.HandleFunc("/reminder", s.handleDeleteReminder).Methods(http.MethodDelete)
	r.HandleFunc("/history", s.handlePostHistory).Methods(http.MethodPost)
	r.HandleFunc("/history", s.handleDeleteHistory).Methods(http.MethodDelete)
	r.HandleFunc("/ping", s.handleListPings).Methods(http.MethodGet)
	r.HandleFunc("/ping", s.handlePostPing).Methods(http.MethodPost)
	return r
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != s.apiKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type reminderResponse struct {
	Guild            int64  `json:"guild"`
	Member           int64  `json:"member"`
	Key              int    `json:"key"`
	Channel          int64  `json:"channel"`
	Timezone         string `json:"timezone"`
	CyclesPerDay     int    `json:"cycles_per_day"`
	CorrectionAmount string `json:"correction_amount"`
	PingInterval     string `json:"ping_interval"`
	BedTime          string `json:"bed_time"`
	ShowAlternating  string `json:"show_alternating"`
	PingMessage      string `json:"ping_message"`
	TTSValue         int    `json:"tts_value"`
	TTSCustom        string `json:"tts_custom"`
	ResponseMessage  string `json:"response_message"`
	ResponseEmotes   string `json:"response_emotes"`
	ColorHex         string `json:"color_hex"`
	LastPing         string `json:"last_ping"`
	MuteUntil        string `json:"mute_until"`
	AlternatingFlag  bool   `json:"alternating_flag"`
}

type historyResponse struct {
	Message string `json:"message"`
	Emote   int64  `json:"emote"`
}

type pingResponse struct {
	Reminder   reminderResponse `json:"reminder"`
	Message    string           `json:"message"`
	TTSMessage bool             `json:"tts_message"`
	TTSCustom  string           `json:"tts_custom"`
	When       string           `json:"when"`
	Last       string           `json:"last"`
	Gaps       string           `json:"gaps"`
	Schedule   string           `json:"schedule"`
	Muted      string           `json:"muted,omitempty"`
	FlagDue    bool             `json:"flag_due"`
	FlagMuted  bool             `json:"flag_muted"`
	FlagPing   bool             `json:"flag_ping"`
}

// reminderUpdateRequest is the PUT /reminder body. Every field is
// optional; bed_time is a local time of day in the reminder's timezone,
// durations are given in seconds.
type reminderUpdateRequest struct {
	Channel          *int64   `json:"channel"`
	Timezone         *string  `json:"timezone"`
	CyclesPerDay     *int     `json:"cycles_per_day"`
	CorrectionAmount *float64 `json:"correction_amount"`
	PingInterval     *float64 `json:"ping_interval"`
	BedTime          *string  `json:"bed_time"`
	ShowAlternating  *string  `json:"show_alternating"`
	PingMessage      *string  `json:"ping_message"`
	TTSValue         *int     `json:"tts_value"`
	TTSCustom        *string  `json:"tts_custom"`
	ResponseMessage  *string  `json:"response_message"`
	ResponseEmotes   *string  `json:"response_emotes"`
	ColorHex         *string  `json:"color_hex"`
	LastPingUTC      *string  `json:"last_ping_utc"`
	MuteUntilUTC     *string  `json:"mute_until_utc"`
	AlternatingFlag  *bool    `json:"alternating_flag"`
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.Guild == nil {
		http.Error(w, `argument "guild" missing`, http.StatusBadRequest)
		return
	}
	rems, err := s.engine.ListReminders(r.Context(), filter)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	out := make([]reminderResponse, 0, len(rems))
	for _, rem := range rems {
		out = append(out, makeReminderResponse(rem))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutReminder(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req reminderUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	update, err := makeUpdate(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.engine.ApplyUpdate(r.Context(), key, update); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.DeleteReminder(r.Context(), key); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostHistory(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	now := s.now().UTC()
	at := now
	if raw := r.URL.Query().Get("time_utc"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid time_utc: %v", err), http.StatusBadRequest)
			return
		}
		if at.After(now) {
			http.Error(w, "time cannot be in the future", http.StatusBadRequest)
			return
		}
	}
	ack, err := s.engine.RecordDone(r.Context(), key, at, now)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Message: ack.Message,
		Emote:   ack.Emote,
	})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.engine.UndoLastDone(r.Context(), key); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := engine.ListOptions{
		Guild:  filter.Guild,
		Member: filter.Member,
		Slot:   filter.Slot,
	}
	opts.FilterDue, err = parseBoolArg(r, "filter_due", true)
	if err == nil {
		opts.FilterMuted, err = parseBoolArg(r, "filter_muted", true)
	}
	if err == nil {
		opts.FilterPingDue, err = parseBoolArg(r, "filter_ping_due", true)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := s.now().UTC()
	views, err := s.engine.ListDue(r.Context(), opts, now)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	out := make([]pingResponse, 0, len(views))
	for _, view := range views {
		ping, err := pingview.Build(view, now)
		if err != nil {
			slog.Error("ping rendering failed", "error", err, "key", view.Reminder.Key.String())
			continue
		}
		out = append(out, makePingResponse(view.Reminder, ping))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostPing(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.MarkPinged(r.Context(), key, s.now().UTC()); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, reminder.ErrOrderingConflict),
		errors.Is(err, reminder.ErrInvalidConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, reminder.ErrEmptyLedger):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func parseKey(r *http.Request) (reminder.Key, error) {
	filter, err := parseListFilter(r)
	if err != nil {
		return reminder.Key{}, err
	}
	if filter.Guild == nil {
		return reminder.Key{}, errors.New(`argument "guild" missing`)
	}
	if filter.Member == nil {
		return reminder.Key{}, errors.New(`argument "member" missing`)
	}
	if filter.Slot == nil {
		return reminder.Key{}, errors.New(`argument "key" missing`)
	}
	return reminder.Key{Guild: *filter.Guild, Member: *filter.Member, Slot: *filter.Slot}, nil
}

func parseListFilter(r *http.Request) (reminder.ListFilter, error) {
	var filter reminder.ListFilter
	query := r.URL.Query()
	if raw := query.Get("guild"); raw != "" {
		guild, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf(`invalid value for "guild": %q`, raw)
		}
		filter.Guild = &guild
	}
	if raw := query.Get("member"); raw != "" {
		member, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf(`invalid value for "member": %q`, raw)
		}
		filter.Member = &member
	}
	if raw := query.Get("key"); raw != "" {
		slot, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf(`invalid value for "key": %q`, raw)
		}
		filter.Slot = &slot
	}
	return filter, nil
}

func parseBoolArg(r *http.Request, name string, defaultValue bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf(`invalid value for %q: %q`, name, raw)
	}
	return value, nil
}

func makeUpdate(req reminderUpdateRequest) (engine.Update, error) {
	update := engine.Update{
		Channel:         req.Channel,
		Timezone:        req.Timezone,
		CyclesPerDay:    req.CyclesPerDay,
		ShowAlternating: req.ShowAlternating,
		PingMessage:     req.PingMessage,
		TTSCustom:       req.TTSCustom,
		ResponseMessage: req.ResponseMessage,
		ResponseEmotes:  req.ResponseEmotes,
		ColorHex:        req.ColorHex,
		AlternatingFlag: req.AlternatingFlag,
	}
	if req.CorrectionAmount != nil {
		d := time.Duration(*req.CorrectionAmount * float64(time.Second))
		update.CorrectionAmount = &d
	}
	if req.PingInterval != nil {
		d := time.Duration(*req.PingInterval * float64(time.Second))
		update.PingInterval = &d
	}
	if req.BedTime != nil {
		secs, err := parseTimeOfDay(*req.BedTime)
		if err != nil {
			return update, err
		}
		update.BedTime = &secs
	}
	if req.TTSValue != nil {
		mode := reminder.TTSMode(*req.TTSValue)
		update.TTSMode = &mode
	}
	if req.LastPingUTC != nil {
		at, err := time.Parse(time.RFC3339, *req.LastPingUTC)
		if err != nil {
			return update, fmt.Errorf("invalid last_ping_utc: %v", err)
		}
		update.LastPing = &at
	}
	if req.MuteUntilUTC != nil {
		until, err := time.Parse(time.RFC3339, *req.MuteUntilUTC)
		if err != nil {
			return update, fmt.Errorf("invalid mute_until_utc: %v", err)
		}
		update.MuteUntil = &until
	}
	return update, nil
}

// parseTimeOfDay parses "HH:MM" or "HH:MM:SS" into seconds since
// midnight.
func parseTimeOfDay(s string) (int, error) {
	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
		}
	}
	return 0, fmt.Errorf("invalid bed_time %q, expected HH:MM or HH:MM:SS", s)
}

func formatTimeOfDay(secs int) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

func makeReminderResponse(rem *reminder.Reminder) reminderResponse {
	return reminderResponse{
		Guild:            rem.Key.Guild,
		Member:           rem.Key.Member,
		Key:              rem.Key.Slot,
		Channel:          rem.Channel,
		Timezone:         rem.Timezone,
		CyclesPerDay:     rem.CyclesPerDay,
		CorrectionAmount: rem.CorrectionAmount.String(),
		PingInterval:     rem.PingInterval.String(),
		BedTime:          formatTimeOfDay(rem.BedTime),
		ShowAlternating:  rem.ShowAlternating,
		PingMessage:      rem.PingMessage,
		TTSValue:         int(rem.TTSMode),
		TTSCustom:        rem.TTSCustom,
		ResponseMessage:  rem.ResponseMessage,
		ResponseEmotes:   rem.ResponseEmotes,
		ColorHex:         rem.ColorHex,
		LastPing:         rem.LastPing.UTC().Format(time.RFC3339),
		MuteUntil:        rem.MuteUntil.UTC().Format(time.RFC3339),
		AlternatingFlag:  rem.AlternatingFlag,
	}
}

func makePingResponse(rem *reminder.Reminder, ping *pingview.Ping) pingResponse {
	return pingResponse{
		Reminder:   makeReminderResponse(rem),
		Message:    ping.Message,
		TTSMessage: ping.TTSMessage,
		TTSCustom:  ping.TTSCustom,
		When:       ping.When,
		Last:       ping.Last,
		Gaps:       ping.Gaps,
		Schedule:   ping.Schedule,
		Muted:      ping.MutedFor,
		FlagDue:    ping.Due,
		FlagMuted:  ping.Muted,
		FlagPing:   ping.PingDue,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}
