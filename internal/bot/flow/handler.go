// internal/bot/flow/handler.go
package flow

import (
	"context"
	"strconv"

	"intake-bot/internal/catalog"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
	"intake-bot/internal/store"
)

const TaskType = "intake-flow"

// Handler drives the questionnaire. Every operation follows the same shape:
// load state, validate against the live catalog, commit the transition with a
// compare-and-swap, then send the reply. State commits before sends and is
// never rolled back when a send fails.
type Handler struct {
	config   *Config
	apps     *store.ApplicationStore
	catalog  *catalog.Service
	chat     ChatSender
	notifier ReviewNotifier
	logger   logger.Logger
}

func NewHandler(config *Config, apps *store.ApplicationStore, cat *catalog.Service, chat ChatSender, notifier ReviewNotifier, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		apps:     apps,
		catalog:  cat,
		chat:     chat,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Start creates the user's application if needed and prompts the current step.
func (h *Handler) Start(ctx context.Context, userID, chatID int64, username, language string) error {
	app, err := h.apps.GetByUserID(ctx, userID)
	if err != nil && !stderrors.IsCode(err, stderrors.ErrCodeApplicationNotFound) {
		return err
	}

	if app == nil {
		steps, err := h.catalog.Steps(ctx)
		if err != nil {
			h.send(ctx, chatID, h.config.OperatorFlagNotice, nil)
			return err
		}
		first, ok := catalog.FirstActive(steps)
		if !ok {
			h.send(ctx, chatID, h.config.OperatorFlagNotice, nil)
			return stderrors.NewCatalogEmptyError()
		}

		app, err = h.apps.Create(ctx, userID, chatID, username, language, first.StepID)
		if err != nil {
			return err
		}
		h.send(ctx, chatID, h.config.GreetingText, nil)
	} else if app.Language == "" && language != "" {
		// Backfill for applications created before the client reported a language.
		if err := h.apps.SetLanguage(ctx, app.ID, language); err != nil {
			h.logger.Warn("language backfill failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		} else {
			app.Language = language
		}
	}

	if app.IsTerminal() {
		h.send(ctx, chatID, h.config.AlreadySubmitted, nil)
		return nil
	}

	res, _, err := h.catalog.Resolve(ctx, app)
	if err != nil {
		return err
	}
	return h.applyResolution(ctx, app, res, nil)
}

// HandleText processes a free-text answer for the current step.
func (h *Handler) HandleText(ctx context.Context, app *models.Application, text string) error {
	if app.IsTerminal() {
		h.send(ctx, app.ChatID, h.config.AlreadySubmitted, nil)
		return nil
	}

	res, steps, err := h.catalog.Resolve(ctx, app)
	if err != nil {
		return h.handleCatalogError(ctx, app, err)
	}
	if res.Step == nil {
		return h.applyResolution(ctx, app, res, steps)
	}
	step := res.Step

	if step.InputKind != models.InputFreeText {
		h.send(ctx, app.ChatID, h.config.UseButtonsHint, h.keyboard(step))
		return nil
	}

	answer, verr := h.validateText(step.StepID, text)
	if verr != nil {
		h.send(ctx, app.ChatID, stderrors.Hint(verr), nil)
		return nil
	}

	value := models.FieldValue{Kind: "text", Text: answer}
	return h.commitAnswer(ctx, app, step, steps, value)
}

// HandleButton processes an inline button press.
func (h *Handler) HandleButton(ctx context.Context, app *models.Application, action Action) error {
	if action.Kind == ActionStart {
		h.answerCallback(ctx, action.CallbackID, "")
		return h.Start(ctx, app.UserID, app.ChatID, app.Username, app.Language)
	}

	if app.IsTerminal() {
		h.answerCallback(ctx, action.CallbackID, h.config.AlreadySubmitted)
		return nil
	}

	res, steps, err := h.catalog.Resolve(ctx, app)
	if err != nil {
		h.answerCallback(ctx, action.CallbackID, "")
		return h.handleCatalogError(ctx, app, err)
	}
	if res.Step == nil {
		h.answerCallback(ctx, action.CallbackID, "")
		return h.applyResolution(ctx, app, res, steps)
	}
	step := res.Step

	// A press on a keyboard from an already-answered step is stale.
	if action.StepID != step.StepID {
		h.logger.Info("stale action ignored", map[string]interface{}{
			"applicationId": app.ID,
			"actionStep":    action.StepID,
			"currentStep":   step.StepID,
		})
		h.answerCallback(ctx, action.CallbackID, h.config.StaleActionHint)
		return nil
	}

	switch action.Kind {
	case ActionAnswer:
		return h.handleAnswerButton(ctx, app, step, steps, action)
	case ActionConfirm:
		return h.handleConfirm(ctx, app, step, steps, action)
	case ActionDone:
		return h.handleDone(ctx, app, step, steps, action)
	}

	h.answerCallback(ctx, action.CallbackID, "")
	return nil
}

func (h *Handler) handleAnswerButton(ctx context.Context, app *models.Application, step *models.QuestionDefinition, steps []models.QuestionDefinition, action Action) error {
	opt, ok := step.OptionByToken(action.Token)
	if !ok {
		h.answerCallback(ctx, action.CallbackID, h.config.StaleActionHint)
		return nil
	}

	switch step.InputKind {
	case models.InputSingleChoice:
		h.answerCallback(ctx, action.CallbackID, "")
		value := models.FieldValue{Kind: "choice", Choice: opt.Token}
		return h.commitAnswer(ctx, app, step, steps, value)

	case models.InputMultiChoice:
		sel := app.PendingSelection
		if sel == nil || sel.StepID != step.StepID {
			sel = &models.PendingSelection{StepID: step.StepID}
		}

		removed := false
		for i, t := range sel.Tokens {
			if t == opt.Token {
				sel.Tokens = append(sel.Tokens[:i], sel.Tokens[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			sel.Tokens = append(sel.Tokens, opt.Token)
		}

		if err := h.apps.SavePendingSelection(ctx, app.ID, sel); err != nil {
			return err
		}
		app.PendingSelection = sel

		ack := h.config.SelectionAddedText
		if removed {
			ack = h.config.SelectionRemovedText
		}
		h.answerCallback(ctx, action.CallbackID, ack+": "+opt.Label)
		return nil
	}

	h.answerCallback(ctx, action.CallbackID, h.config.UseButtonsHint)
	return nil
}

func (h *Handler) handleConfirm(ctx context.Context, app *models.Application, step *models.QuestionDefinition, steps []models.QuestionDefinition, action Action) error {
	if step.InputKind != models.InputMultiChoice {
		h.answerCallback(ctx, action.CallbackID, h.config.StaleActionHint)
		return nil
	}

	sel := app.PendingSelection
	if sel == nil || sel.StepID != step.StepID || len(sel.Tokens) == 0 {
		h.answerCallback(ctx, action.CallbackID, h.config.EmptySelectionHint)
		return nil
	}

	h.answerCallback(ctx, action.CallbackID, "")
	value := models.FieldValue{Kind: "list", List: sel.Tokens}
	return h.commitAnswer(ctx, app, step, steps, value)
}

func (h *Handler) handleDone(ctx context.Context, app *models.Application, step *models.QuestionDefinition, steps []models.QuestionDefinition, action Action) error {
	if step.InputKind != models.InputMedia {
		h.answerCallback(ctx, action.CallbackID, h.config.StaleActionHint)
		return nil
	}

	sel := app.PendingSelection
	if sel == nil || sel.StepID != step.StepID || len(sel.Media) == 0 {
		h.answerCallback(ctx, action.CallbackID, h.config.NoMediaHint)
		return nil
	}

	h.answerCallback(ctx, action.CallbackID, "")
	value := models.FieldValue{Kind: "media", Media: sel.Media}
	return h.commitAnswer(ctx, app, step, steps, value)
}

// HandleMedia accumulates an attachment for a media step.
func (h *Handler) HandleMedia(ctx context.Context, app *models.Application, media models.MediaRef) error {
	if app.IsTerminal() {
		h.send(ctx, app.ChatID, h.config.AlreadySubmitted, nil)
		return nil
	}

	res, steps, err := h.catalog.Resolve(ctx, app)
	if err != nil {
		return h.handleCatalogError(ctx, app, err)
	}
	if res.Step == nil {
		return h.applyResolution(ctx, app, res, steps)
	}
	step := res.Step

	if step.InputKind != models.InputMedia {
		h.send(ctx, app.ChatID, h.config.MediaNotExpected, h.keyboard(step))
		return nil
	}

	sel := app.PendingSelection
	if sel == nil || sel.StepID != step.StepID {
		sel = &models.PendingSelection{StepID: step.StepID}
	}

	// Re-delivered uploads are idempotent on file id.
	for _, m := range sel.Media {
		if m.FileID == media.FileID {
			return nil
		}
	}
	if len(sel.Media) >= h.config.MaxMediaCount {
		// Cap already reached, commit what is stored.
		value := models.FieldValue{Kind: "media", Media: sel.Media}
		return h.commitAnswer(ctx, app, step, steps, value)
	}

	sel.Media = append(sel.Media, media)
	if len(sel.Media) >= h.config.MaxMediaCount {
		// Hitting the cap commits the step, same as pressing Done.
		value := models.FieldValue{Kind: "media", Media: sel.Media}
		return h.commitAnswer(ctx, app, step, steps, value)
	}
	if err := h.apps.SavePendingSelection(ctx, app.ID, sel); err != nil {
		return err
	}
	app.PendingSelection = sel

	ack := renderTemplate(h.config.MediaAddedText, map[string]string{
		"count": strconv.Itoa(len(sel.Media)),
	})
	h.send(ctx, app.ChatID, ack, h.keyboard(step))
	return nil
}

// commitAnswer records the answer, moving forward or finishing. The expected
// step for the compare-and-swap is the loaded current_step, so any event that
// raced past us turns this into a no-op.
func (h *Handler) commitAnswer(ctx context.Context, app *models.Application, step *models.QuestionDefinition, steps []models.QuestionDefinition, value models.FieldValue) error {
	next := h.nextUnanswered(app, steps, step)

	if next != nil {
		advanced, err := h.apps.AdvanceStep(ctx, app.ID, app.CurrentStep, next.StepID, step.StepID, value)
		if err != nil {
			return err
		}
		if !advanced {
			h.absorbDuplicate(app, step.StepID)
			return nil
		}
		metrics.StepTransitions.WithLabelValues(next.StepID).Inc()
		h.send(ctx, app.ChatID, next.Prompt, h.keyboard(next))
		return nil
	}

	completed, err := h.apps.CompleteApplication(ctx, app.ID, app.CurrentStep, step.StepID, value)
	if err != nil {
		return err
	}
	if !completed {
		h.absorbDuplicate(app, step.StepID)
		return nil
	}
	metrics.StepTransitions.WithLabelValues("pending_review").Inc()
	h.send(ctx, app.ChatID, h.config.CompletionAck, nil)
	h.notifier.NotifyReviewReady(ctx, app)
	return nil
}

// applyResolution handles the no-step outcomes: all answered, or nothing usable.
func (h *Handler) applyResolution(ctx context.Context, app *models.Application, res *catalog.Resolution, _ []models.QuestionDefinition) error {
	if res.Complete {
		completed, err := h.apps.MarkPendingReview(ctx, app.ID)
		if err != nil {
			return err
		}
		if !completed {
			h.absorbDuplicate(app, app.CurrentStep)
			return nil
		}
		h.send(ctx, app.ChatID, h.config.CompletionAck, nil)
		h.notifier.NotifyReviewReady(ctx, app)
		return nil
	}

	if res.Flagged {
		if err := h.apps.FlagForOperator(ctx, app.ID, "catalog offers no answerable step"); err != nil {
			return err
		}
		h.send(ctx, app.ChatID, h.config.OperatorFlagNotice, nil)
		return nil
	}

	if res.Step != nil {
		h.send(ctx, app.ChatID, res.Step.Prompt, h.keyboard(res.Step))
	}
	return nil
}

func (h *Handler) handleCatalogError(ctx context.Context, app *models.Application, err error) error {
	if stderrors.IsCode(err, stderrors.ErrCodeCatalogEmpty) || stderrors.IsCode(err, stderrors.ErrCodeCatalogInconsistent) {
		if ferr := h.apps.FlagForOperator(ctx, app.ID, "catalog unavailable"); ferr != nil {
			h.logger.Error("failed to flag application", map[string]interface{}{
				"applicationId": app.ID,
				"error":         ferr.Error(),
			})
		}
		h.send(ctx, app.ChatID, h.config.OperatorFlagNotice, nil)
	}
	return err
}

// nextUnanswered walks forward from the answered step to the next active
// step without an answer. Steps are never revisited.
func (h *Handler) nextUnanswered(app *models.Application, steps []models.QuestionDefinition, answered *models.QuestionDefinition) *models.QuestionDefinition {
	for i := range steps {
		if !steps[i].Active || steps[i].Position <= answered.Position {
			continue
		}
		if steps[i].StepID == answered.StepID || app.HasAnswer(steps[i].StepID) {
			continue
		}
		return &steps[i]
	}
	return nil
}

// keyboard builds the inline keyboard for a step, one option per row.
func (h *Handler) keyboard(step *models.QuestionDefinition) *telegram.InlineKeyboardMarkup {
	switch step.InputKind {
	case models.InputSingleChoice, models.InputMultiChoice:
		var rows [][]telegram.InlineKeyboardButton
		for _, opt := range step.Options {
			rows = append(rows, []telegram.InlineKeyboardButton{{
				Text:         opt.ButtonText(),
				CallbackData: EncodeAnswer(step.StepID, opt.Token),
			}})
		}
		if step.InputKind == models.InputMultiChoice {
			rows = append(rows, []telegram.InlineKeyboardButton{{
				Text:         "Confirm",
				CallbackData: EncodeConfirm(step.StepID),
			}})
		}
		return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}

	case models.InputMedia:
		return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{{
			Text:         "Done",
			CallbackData: EncodeDone(step.StepID),
		}}}}
	}
	return nil
}

// send delivers a message after the state commit. Failures are logged and
// swallowed: the committed state is the source of truth and the user can
// always re-trigger the prompt.
func (h *Handler) send(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if text == "" {
		return
	}
	if _, err := h.chat.SendMessage(ctx, chatID, text, markup); err != nil {
		h.logger.Warn("send after commit failed", map[string]interface{}{
			"chatId": chatID,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) answerCallback(ctx context.Context, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if err := h.chat.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		h.logger.Warn("callback ack failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) absorbDuplicate(app *models.Application, stepID string) {
	metrics.DuplicateUpdates.Inc()
	h.logger.Info("duplicate transition absorbed", map[string]interface{}{
		"applicationId": app.ID,
		"stepId":        stepID,
	})
}
