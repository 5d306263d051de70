package api

import (
	"net/http"
)

func (s *Server) handleListBeans(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.visibleRoaster(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	beans, err := s.store.ListBeans(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(beans))
}

func (s *Server) handleCreateBean(w http.ResponseWriter, r *http.Request) {
	roasterID, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in beanInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.store.GetRoasterByID(r.Context(), roasterID); err != nil {
		s.fail(w, r, err)
		return
	}
	bean, err := s.store.CreateBean(r.Context(), in.model(roasterID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, bean)
}

func (s *Server) handleUpdateBean(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in beanInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	bean, err := s.store.UpdateBean(r.Context(), id, in.model(0))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bean)
}

func (s *Server) handleDeleteBean(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteBean(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCafes(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.visibleRoaster(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	cafes, err := s.store.ListCafes(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(cafes))
}

func (s *Server) handleCreateCafe(w http.ResponseWriter, r *http.Request) {
	roasterID, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in cafeInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.store.GetRoasterByID(r.Context(), roasterID); err != nil {
		s.fail(w, r, err)
		return
	}
	cafe, err := s.store.CreateCafe(r.Context(), in.model(roasterID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cafe)
}

func (s *Server) handleUpdateCafe(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in cafeInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	cafe, err := s.store.UpdateCafe(r.Context(), id, in.model(0))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cafe)
}

func (s *Server) handleDeleteCafe(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteCafe(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
