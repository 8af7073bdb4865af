package http

import (
	"net/http"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

// HistoryResponse is the history list without payloads
// @Description Snapshot history with the current pointer
type HistoryResponse struct {
	Entries      []*domain.Snapshot `json:"entries"`
	CurrentIndex int                `json:"current_index"`
	CanUndo      bool               `json:"can_undo"`
	CanRedo      bool               `json:"can_redo"`
}

// CaptureRequest asks for a snapshot of the current document
type CaptureRequest struct {
	Trigger      domain.TriggerKind `json:"trigger"`
	Description  string             `json:"description"`
	VersionName  *string            `json:"version_name,omitempty"`
	SkipThrottle bool               `json:"skip_throttle"`
}

// CaptureResponse reports whether a snapshot was created
type CaptureResponse struct {
	Captured bool             `json:"captured"`
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
}

// DocumentResponse carries the document after a restore or edit
type DocumentResponse struct {
	Document *domain.Document `json:"document"`
	CanUndo  bool             `json:"can_undo"`
	CanRedo  bool             `json:"can_redo"`
}

// UpdateDocumentRequest replaces the editable content of a plan
type UpdateDocumentRequest struct {
	Trigger     domain.TriggerKind `json:"trigger"`
	Description string             `json:"description"`
	ClientID    string             `json:"client_id"`
	Notes       string             `json:"notes"`
	Days        []*domain.DayNode  `json:"days"`
}

// CopyMealRequest selects a meal in the current document
type CopyMealRequest struct {
	DayID  string `json:"day_id"`
	MealID string `json:"meal_id"`
}

// PasteMealRequest selects the day a copied meal goes into
type PasteMealRequest struct {
	TargetDayID string `json:"target_day_id"`
}

// PasteMealResponse carries the placed meal, or null when nothing was copied
type PasteMealResponse struct {
	Meal *domain.MealNode `json:"meal"`
}

// CopyDayRequest selects a day in the current document
type CopyDayRequest struct {
	DayID string `json:"day_id"`
}

// PasteDayResponse carries the placed day, or null when nothing was copied
type PasteDayResponse struct {
	Day *domain.DayNode `json:"day"`
}

// CalculatorRequest scales the meals of one day
type CalculatorRequest struct {
	DayID   string             `json:"day_id"`
	Factors map[string]float64 `json:"factors"` // Keyed by meal ID
}

// StateResponse is the session's loading and availability flags
type StateResponse struct {
	DocumentID      string           `json:"document_id"`
	CanUndo         bool             `json:"can_undo"`
	CanRedo         bool             `json:"can_redo"`
	IsLoading       bool             `json:"is_loading"`
	ClipboardActive bool             `json:"clipboard_active"`
	Document        *domain.Document `json:"document"`
}

// History endpoints

// handleGetHistory godoc
// @Summary      Get plan history
// @Description  Lists snapshots (without payloads) and the current pointer
// @Tags         History
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  HistoryResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /api/v1/plans/{id}/history [get]
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}

	stack := session.History()
	writeJSON(w, http.StatusOK, HistoryResponse{
		Entries:      stack.Entries,
		CurrentIndex: stack.CurrentIndex,
		CanUndo:      stack.CanUndo(),
		CanRedo:      stack.CanRedo(),
	})
}

// handleCapture godoc
// @Summary      Capture a snapshot
// @Description  Snapshots the current document. Returns captured=false when the capture was coalesced, a duplicate, or suppressed by a restore.
// @Tags         History
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string          true  "Plan ID"
// @Param        request  body      CaptureRequest  true  "Capture trigger"
// @Success      201      {object}  CaptureResponse
// @Success      200      {object}  CaptureResponse
// @Failure      400      {object}  ErrorResponse  "Invalid trigger"
// @Failure      503      {object}  ErrorResponse  "Persistence failure"
// @Router       /api/v1/plans/{id}/snapshots [post]
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session := s.session(w, r)
	if session == nil {
		return
	}

	snap, err := session.Capture(r.Context(), req.Trigger, req.Description, domain.CaptureOptions{
		SkipThrottle: req.SkipThrottle,
		VersionName:  req.VersionName,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, CaptureResponse{Captured: false})
		return
	}
	writeJSON(w, http.StatusCreated, CaptureResponse{Captured: true, Snapshot: snap})
}

// handleUndo godoc
// @Summary      Undo
// @Description  Restores the previous snapshot, or the empty plan from the first one
// @Tags         History
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  DocumentResponse
// @Failure      409  {object}  ErrorResponse  "Nothing to undo or a restore is running"
// @Failure      422  {object}  ErrorResponse  "Snapshot payload is corrupt"
// @Failure      503  {object}  ErrorResponse  "Restore failed"
// @Router       /api/v1/plans/{id}/undo [post]
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}
	doc, err := session.Undo(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, CanUndo: session.CanUndo(), CanRedo: session.CanRedo()})
}

// handleRedo godoc
// @Summary      Redo
// @Tags         History
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  DocumentResponse
// @Failure      409  {object}  ErrorResponse  "Nothing to redo or a restore is running"
// @Router       /api/v1/plans/{id}/redo [post]
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}
	doc, err := session.Redo(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, CanUndo: session.CanUndo(), CanRedo: session.CanRedo()})
}

// Clipboard endpoints

// handleCopyMeal godoc
// @Summary      Copy a meal
// @Description  Deep-copies a meal of the current plan into the session clipboard
// @Tags         Clipboard
// @Accept       json
// @Security     BearerAuth
// @Param        id       path  string           true  "Plan ID"
// @Param        request  body  CopyMealRequest  true  "Meal to copy"
// @Success      204
// @Failure      404  {object}  ErrorResponse  "Day or meal not found"
// @Router       /api/v1/plans/{id}/clipboard/meal [post]
func (s *Server) handleCopyMeal(w http.ResponseWriter, r *http.Request) {
	var req CopyMealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session := s.session(w, r)
	if session == nil {
		return
	}

	day, _ := session.Editor().Document().Day(req.DayID)
	if day == nil {
		writeError(w, http.StatusNotFound, "day not found")
		return
	}
	meal, _ := day.Meal(req.MealID)
	if meal == nil {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}
	if err := session.CopyMeal(meal, day.ID, meal.OrderIndex); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePasteMeal godoc
// @Summary      Paste a meal
// @Description  Inserts a fresh-ID clone of the copied meal into a day. meal is null when nothing was copied.
// @Tags         Clipboard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string            true  "Plan ID"
// @Param        request  body      PasteMealRequest  true  "Target day"
// @Success      200      {object}  PasteMealResponse
// @Router       /api/v1/plans/{id}/clipboard/meal/paste [post]
func (s *Server) handlePasteMeal(w http.ResponseWriter, r *http.Request) {
	var req PasteMealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session := s.session(w, r)
	if session == nil {
		return
	}

	meal, err := session.PasteMeal(r.Context(), req.TargetDayID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PasteMealResponse{Meal: meal})
}

// handleCopyDay godoc
// @Summary      Copy a day
// @Tags         Clipboard
// @Accept       json
// @Security     BearerAuth
// @Param        id       path  string          true  "Plan ID"
// @Param        request  body  CopyDayRequest  true  "Day to copy"
// @Success      204
// @Router       /api/v1/plans/{id}/clipboard/day [post]
func (s *Server) handleCopyDay(w http.ResponseWriter, r *http.Request) {
	var req CopyDayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session := s.session(w, r)
	if session == nil {
		return
	}

	day, _ := session.Editor().Document().Day(req.DayID)
	if day == nil {
		writeError(w, http.StatusNotFound, "day not found")
		return
	}
	if err := session.CopyDay(day); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePasteDay godoc
// @Summary      Paste a day
// @Description  Inserts the copied day as a new day or merges it into an existing one
// @Tags         Clipboard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Plan ID"
// @Param        request  body      domain.DayPasteOptions  true  "Paste options"
// @Success      200      {object}  PasteDayResponse
// @Failure      400      {object}  ErrorResponse  "Incomplete options"
// @Router       /api/v1/plans/{id}/clipboard/day/paste [post]
func (s *Server) handlePasteDay(w http.ResponseWriter, r *http.Request) {
	opts := domain.DayPasteOptions{Position: -1}
	if err := decodeJSON(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session := s.session(w, r)
	if session == nil {
		return
	}

	day, err := session.PasteDay(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PasteDayResponse{Day: day})
}

// handleClearClipboard godoc
// @Summary      Clear clipboard
// @Tags         Clipboard
// @Security     BearerAuth
// @Param        id  path  string  true  "Plan ID"
// @Success      204
// @Router       /api/v1/plans/{id}/clipboard [delete]
func (s *Server) handleClearClipboard(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}
	session.ClearClipboard()
	w.WriteHeader(http.StatusNoContent)
}

// Editing endpoints

// handleUpdateDocument godoc
// @Summary      Replace plan content
// @Description  Writes new plan content and captures a snapshot with the given trigger
// @Tags         Plans
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Plan ID"
// @Param        request  body      UpdateDocumentRequest  true  "Plan content"
// @Success      200      {object}  DocumentResponse
// @Failure      400      {object}  ErrorResponse  "Null or duplicate nodes"
// @Failure      409      {object}  ErrorResponse  "A restore is running"
// @Router       /api/v1/plans/{id}/document [put]
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req UpdateDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}
	if req.Days == nil {
		req.Days = []*domain.DayNode{}
	}
	session := s.session(w, r)
	if session == nil {
		return
	}

	doc, err := session.Editor().Apply(r.Context(), req.Trigger, req.Description, func(d *domain.Document) error {
		d.ClientID = req.ClientID
		d.Notes = req.Notes
		d.Days = req.Days
		return nil
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, CanUndo: session.CanUndo(), CanRedo: session.CanRedo()})
}

// handleCalculator godoc
// @Summary      Apply calculator
// @Description  Scales ingredient quantities of the selected meals of one day
// @Tags         Plans
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true  "Plan ID"
// @Param        request  body      CalculatorRequest  true  "Scale factors"
// @Success      200      {object}  DocumentResponse
// @Router       /api/v1/plans/{id}/calculator [post]
func (s *Server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	var req CalculatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session := s.session(w, r)
	if session == nil {
		return
	}

	doc, err := session.Editor().ApplyCalculator(r.Context(), req.DayID, req.Factors)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, CanUndo: session.CanUndo(), CanRedo: session.CanRedo()})
}

// handleGetState godoc
// @Summary      Get session state
// @Tags         Plans
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  StateResponse
// @Router       /api/v1/plans/{id}/state [get]
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{
		DocumentID:      session.DocumentID(),
		CanUndo:         session.CanUndo(),
		CanRedo:         session.CanRedo(),
		IsLoading:       session.IsLoading(),
		ClipboardActive: session.IsActive(),
		Document:        session.Editor().Document(),
	})
}

// handleCloseSession godoc
// @Summary      Close editing session
// @Description  Drops the caller's session, its clipboard and queue
// @Tags         Plans
// @Security     BearerAuth
// @Param        id  path  string  true  "Plan ID"
// @Success      204
// @Router       /api/v1/plans/{id}/session [delete]
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.sessions.Close(authCtx, r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
