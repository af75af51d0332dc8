package handlers

import (
	"net/http"
	"strings"

	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/models"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/validate"
)

type postView struct {
	models.Post
	Blocks []models.Block `json:"blocks"`
}

func (a *API) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := a.admin.ListPosts(r.Context(), upstreamToken(r))
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		blocks, ok := p.Blocks()
		if !ok {
			blocks = []models.Block{}
		}
		out = append(out, postView{Post: p, Blocks: blocks})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tsISO": a.nowISO(), "posts": out})
}

type postRequest struct {
	Title  string         `json:"title"`
	Source string         `json:"source"`
	Type   string         `json:"type"`
	Blocks []models.Block `json:"blocks"`
}

func (p postRequest) input() (services.PostInput, []validate.FieldError) {
	if errs := validate.Post(p.Title, p.Type, p.Blocks); len(errs) > 0 {
		return services.PostInput{}, errs
	}
	body, err := models.EncodeBlocks(p.Blocks)
	if err != nil {
		return services.PostInput{}, []validate.FieldError{{Field: "body", Description: err.Error()}}
	}
	postType := models.PostNews
	if t, ok := models.ParsePostType(p.Type); ok {
		postType = t
	}
	return services.PostInput{
		Title:  strings.TrimSpace(p.Title),
		Body:   body,
		Source: strings.TrimSpace(p.Source),
		Type:   string(postType),
	}, nil
}

func (a *API) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in postRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, errs := in.input()
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.admin.CreatePost(r.Context(), upstreamToken(r), p)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "post_create", map[string]any{"title": p.Title})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "result": res})
}

func (a *API) EditPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in postRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, errs := in.input()
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.admin.EditPost(r.Context(), upstreamToken(r), id, p)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "post_edit", map[string]any{"post_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

func (a *API) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := a.admin.DeletePost(r.Context(), upstreamToken(r), id)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "post_delete", map[string]any{"post_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

type sendPostsRequest struct {
	PostIDs  []string `json:"post_ids"`
	Message  string   `json:"message"`
	TopicIDs []int    `json:"topic_ids"`
}

// SendPosts hands the selected posts to the group sender. Topic ids narrow
// delivery to subscribers of those categories; none means everyone.
func (a *API) SendPosts(w http.ResponseWriter, r *http.Request) {
	var in sendPostsRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := make([]string, 0, len(in.PostIDs))
	for _, id := range in.PostIDs {
		if id, ok := validate.ID(id); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || len(ids) != len(in.PostIDs) {
		writeValidation(w, []validate.FieldError{{Field: "post_ids", Description: "Select at least one valid post"}})
		return
	}
	var topics []int
	if len(in.TopicIDs) > 0 {
		topics = in.TopicIDs
	}
	res, err := a.admin.SendPostsToGroup(r.Context(), upstreamToken(r), services.SendPostsInput{
		PostIDs:  ids,
		Message:  strings.TrimSpace(in.Message),
		TopicIDs: topics,
	})
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "posts_send", map[string]any{"posts": len(ids), "topics": topics})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}
