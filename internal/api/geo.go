package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/models"
)

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.store.ListCountries(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, i18n.LocalizeResults(countries, s.lang(w, r), s.countryWithCount))
}

func (s *Server) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	country, err := s.store.GetCountryByCode(r.Context(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	regions, err := s.store.ListRegions(r.Context(), country.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lang := s.lang(w, r)
	out := s.countryView(*country, lang)
	out.Regions = i18n.LocalizeResults(regions, lang, s.regionView)
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListCountryRegions(w http.ResponseWriter, r *http.Request) {
	country, err := s.store.GetCountryByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	regions, err := s.store.ListRegions(r.Context(), country.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, i18n.LocalizeResults(regions, s.lang(w, r), s.regionView))
}

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.ListRegions(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, i18n.LocalizeResults(regions, s.lang(w, r), s.regionView))
}

func (s *Server) handleCreateCountry(w http.ResponseWriter, r *http.Request) {
	var in countryInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	country, err := s.store.CreateCountry(r.Context(), &models.Country{Code: in.Code, Name: in.Name})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.countryView(*country, s.lang(w, r)))
}

func (s *Server) handleCreateRegion(w http.ResponseWriter, r *http.Request) {
	country, err := s.store.GetCountryByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in regionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(s.localizer.Default()); err != nil {
		s.fail(w, r, err)
		return
	}
	region, err := s.store.CreateRegion(r.Context(), &models.Region{CountryID: country.ID, Slug: in.Slug, Name: in.Name})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.regionView(*region, s.lang(w, r)))
}

func (s *Server) handleListSpecialties(w http.ResponseWriter, r *http.Request) {
	specialties, err := s.store.ListSpecialties(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, i18n.LocalizeResults(specialties, s.lang(w, r), s.specialtyView))
}

func (s *Server) handleCreateSpecialty(w http.ResponseWriter, r *http.Request) {
	var in specialtyInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	sp, err := s.store.CreateSpecialty(r.Context(), &models.Specialty{Key: in.Key, Name: in.Name})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.specialtyView(*sp, s.lang(w, r)))
}

func (s *Server) handleUpdateSpecialty(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in specialtyInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	sp, err := s.store.UpdateSpecialty(r.Context(), id, &models.Specialty{Key: in.Key, Name: in.Name})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.specialtyView(*sp, s.lang(w, r)))
}

func (s *Server) handleDeleteSpecialty(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteSpecialty(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
