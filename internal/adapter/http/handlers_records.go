package adapthttp

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"scaletrack/internal/domain"
)

type recordView struct {
	ID      string   `json:"id"`
	Date    string   `json:"date"`
	Value   float64  `json:"value"`
	BodyFat *float64 `json:"bodyFat,omitempty"`
	Note    string   `json:"note,omitempty"`
	Public  bool     `json:"public"`
}

type averageView struct {
	Period     string   `json:"period"`
	AvgValue   float64  `json:"avgValue"`
	AvgBodyFat *float64 `json:"avgBodyFat,omitempty"`
}

func toRecordView(r domain.Record, unit string) recordView {
	return recordView{
		ID:      r.ID,
		Date:    r.Date,
		Value:   domain.ConvertWeight(r.Value, "kg", unit),
		BodyFat: r.BodyFat,
		Note:    r.Note,
		Public:  r.Public,
	}
}

// handleFetchRecords serves one period of records. date selects the period,
// granularity picks month or year, unit optionally converts stored kg values
// for display.
func (s *Server) handleFetchRecords(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	ref, err := refDateQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	gran := domain.Granularity(r.URL.Query().Get("granularity"))
	if gran == "" {
		gran = domain.GranularityMonth
	}
	if !gran.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("granularity must be month or year"))
		return
	}
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = "kg"
	}

	data, err := s.registry.For(user.ID).Controller.FetchRecords(r.Context(), ref, gran)
	if err != nil {
		s.logger.Warn("fetch records failed",
			zap.Int64("user", user.ID),
			zap.String("granularity", string(gran)),
			zap.Error(err))
		writeError(w, statusFor(err), err)
		return
	}

	resp := struct {
		PeriodKey   string        `json:"periodKey"`
		Granularity string        `json:"granularity"`
		Records     []recordView  `json:"records,omitempty"`
		Averages    []averageView `json:"averages,omitempty"`
	}{
		PeriodKey:   data.Key,
		Granularity: string(data.Granularity),
	}
	for _, rec := range data.Records {
		resp.Records = append(resp.Records, toRecordView(rec, unit))
	}
	for _, avg := range data.Averages {
		resp.Averages = append(resp.Averages, averageView{
			Period:     avg.PeriodKey,
			AvgValue:   domain.ConvertWeight(avg.AvgValue, "kg", unit),
			AvgBodyFat: avg.AvgBodyFat,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type saveRequest struct {
	Date    string   `json:"date"`
	Value   float64  `json:"value"`
	Unit    string   `json:"unit"`
	BodyFat *float64 `json:"bodyFat"`
	Note    string   `json:"note"`
	Public  bool     `json:"public"`
}

func (req saveRequest) toDraft() domain.RecordDraft {
	value := req.Value
	if req.Unit != "" {
		value = domain.ConvertWeight(value, req.Unit, "kg")
	}
	return domain.RecordDraft{
		Date:    req.Date,
		Value:   value,
		BodyFat: req.BodyFat,
		Note:    req.Note,
		Public:  req.Public,
	}
}

// handleSaveRecord creates a record for a day. When the day already has one,
// it answers 409 with the existing record so the client can ask the user
// before overwriting.
func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req saveRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := s.registry.For(user.ID).Upserter.Save(r.Context(), req.toDraft())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if outcome.Conflict != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "a record already exists for this day",
			"existing": toRecordView(*outcome.Conflict, "kg"),
		})
		return
	}
	writeJSON(w, http.StatusCreated, toRecordView(*outcome.Created, "kg"))
}

// handleOverwriteRecord replaces an existing record after the client
// confirmed the conflict.
func (s *Server) handleOverwriteRecord(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recordID := chi.URLParam(r, "id")

	var req saveRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.registry.For(user.ID).Upserter.Overwrite(r.Context(), recordID, req.toDraft())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(*rec, "kg"))
}

type viewRequest struct {
	Date        string `json:"date"`
	Granularity string `json:"granularity"`
}

// handleSetView moves the reference period. Navigation never fetches and
// never clears cached data.
func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req viewRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ref, err := time.Parse(domain.DayFormat, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("date must be YYYY-MM-DD"))
		return
	}
	gran := domain.Granularity(req.Granularity)
	if !gran.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("granularity must be month or year"))
		return
	}

	s.registry.For(user.ID).SetView(ref, gran)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	ref, gran := s.registry.For(user.ID).View()
	if ref.IsZero() {
		ref = time.Now()
	}
	writeJSON(w, http.StatusOK, viewRequest{
		Date:        ref.Format(domain.DayFormat),
		Granularity: string(gran),
	})
}

// handleReset drops all cached periods and returns the view to the current
// month.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	s.registry.For(user.ID).Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func refDateQuery(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), nil
	}
	ref, err := time.Parse(domain.DayFormat, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return ref, nil
}
