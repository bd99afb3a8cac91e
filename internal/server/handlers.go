package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/session"
)

// optionalQuery returns nil for absent or empty parameters.
func optionalQuery(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func parseForce(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("force")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// parseKinds accepts repeated parameters as well as comma-separated lists.
func parseKinds(values []string) ([]git.ReferenceKind, error) {
	var kinds []git.ReferenceKind
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			k, err := git.ParseReferenceKind(part)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

func (s *Server) handleGetCommit(w http.ResponseWriter, r *http.Request) {
	c, err := s.Session.GetRevision(r.Context(), r.PathValue("revision"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	c, err := s.Session.CheckoutRevision(r.Context(), r.PathValue("revision"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("checked out revision", "revision", r.PathValue("revision"), "commit", c.Hash)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	commits, err := s.Session.ListCommits(r.Context(), session.ListCommitsOptions{
		Base:   optionalQuery(r, "baseRev"),
		Head:   optionalQuery(r, "headRev"),
		Filter: r.URL.Query().Get("filter"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	d, err := s.Session.GetDiff(r.Context(), optionalQuery(r, "baseRev"), optionalQuery(r, "headRev"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"diff": d})
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.Session.ListTags(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.Session.ListBranches(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": branches})
}

// createParams reads the name, revision and force parameters shared by the
// tag and branch endpoints.
func (s *Server) createParams(w http.ResponseWriter, r *http.Request) (name, revision string, force, ok bool) {
	q := r.URL.Query()
	name, revision = q.Get("name"), q.Get("revision")
	if name == "" || revision == "" {
		s.badRequest(w, "query parameters name and revision are required")
		return "", "", false, false
	}
	force, err := parseForce(r)
	if err != nil {
		s.badRequest(w, "query parameter force must be a boolean")
		return "", "", false, false
	}
	return name, revision, force, true
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	name, revision, force, ok := s.createParams(w, r)
	if !ok {
		return
	}
	tag, err := s.Session.CreateTag(r.Context(), name, revision, force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	name, revision, force, ok := s.createParams(w, r)
	if !ok {
		return
	}
	branch, err := s.Session.CreateBranch(r.Context(), name, revision, force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, branch)
}

func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	include, err := parseKinds(q["include"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	exclude, err := parseKinds(q["exclude"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	kinds, err := git.NewKindFilter(include, exclude)
	if err != nil {
		s.writeError(w, err)
		return
	}
	refs, err := s.Session.ListReferences(r.Context(), q.Get("filter"), kinds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"references": refs})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Session.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
