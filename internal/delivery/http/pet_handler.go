package httpd

import (
	"net/http"

	"eco_api/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// GET /api/pets?ownerEmail=&limit=&offset=
func (h *Handler) ListPets(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	pets, err := h.pets.List(r.Context(), r.URL.Query().Get("ownerEmail"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]PetResp, 0, len(pets))
	for _, p := range pets {
		out = append(out, toPetResp(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/pets/{id}
func (h *Handler) GetPet(w http.ResponseWriter, r *http.Request) {
	p, err := h.pets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPetResp(*p))
}

// POST /api/pets
func (h *Handler) CreatePet(w http.ResponseWriter, r *http.Request) {
	var req CreatePetReq
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.pets.Create(r.Context(), usecase.CreatePetInput{
		Name:             req.Name,
		Species:          req.Species,
		Breed:            req.Breed,
		AgeYears:         req.AgeYears,
		WeightKg:         req.WeightKg,
		HealthConditions: req.HealthConditions,
		OwnerEmail:       req.OwnerEmail,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPetResp(*p))
}

// POST /api/ai
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskReq
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reply, err := h.assistant.Ask(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AskResp{Reply: reply})
}
