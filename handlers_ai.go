package main

import (
	"encoding/json"
	"log"
	"net/http"
)

// HandleCompletion proxies a raw prompt to the completion provider and
// persists the exchange as a (user, assistant) interaction pair.
// POST /ai/completions {prompt}
func (a *App) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "prompt is required")
		return
	}

	completion, model, err := a.Completer.Complete(r.Context(), req.Prompt, user.ID)
	if err != nil {
		writeCompletionError(w, err)
		return
	}

	a.recordInteraction(user.ID, model, req.Prompt, completion)

	writeJSON(w, http.StatusOK, map[string]string{"completion": completion})
}

// HandleAdvice runs the coaching pipeline: templated prompt, completion,
// parse into items, score, optional top_n truncation.
// POST /coach/advice {goal, context?, top_n?}
func (a *App) HandleAdvice(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req struct {
		Goal    string `json:"goal"`
		Context string `json:"context"`
		TopN    int    `json:"top_n"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Goal == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "goal is required")
		return
	}

	result, err := GenerateAdvices(r.Context(), a.Completer, req.Goal, req.Context, user.ID)
	if err != nil {
		writeCompletionError(w, err)
		return
	}

	advices := result.Advices
	if req.TopN > 0 && req.TopN < len(advices) {
		advices = advices[:req.TopN]
	}

	a.recordInteraction(user.ID, result.Model, result.Prompt, result.Raw)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"advices": advices,
		"model":   result.Model,
	})
}

// recordInteraction persists the prompt and reply rows. Persistence is a
// side effect of an already successful completion; a storage error is
// logged, not surfaced.
func (a *App) recordInteraction(userID, model, prompt, reply string) {
	if err := a.DB.CreateInteraction(userID, model, "user", prompt); err != nil {
		log.Printf("record interaction: %v", err)
		return
	}
	if err := a.DB.CreateInteraction(userID, model, "assistant", reply); err != nil {
		log.Printf("record interaction: %v", err)
	}
}
