// Package apitest provides an in-memory class-files backend for tests.
// It implements the same JSON surface the real backend exposes, including
// permission rejection, cycle rejection on folder moves, sibling name
// conflicts, and cascade deletion of folders.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studious-lms/studious-files/internal/models"
)

type folder struct {
	id       string
	name     string
	color    string
	parentID string // "" only for the root
}

type file struct {
	id       string
	name     string
	mime     string
	size     int64
	folderID string
}

// Server is an in-memory backend. It implements http.Handler; wrap it with
// httptest.NewServer to point an api.Client at it.
type Server struct {
	mu      sync.Mutex
	folders map[string]*folder
	files   map[string]*file
	rootID  string

	// ReadOnly makes every mutating operation fail with PERMISSION_DENIED,
	// simulating a non-teacher session the backend rejects.
	ReadOnly bool

	counts map[string]int
	mux    *http.ServeMux
}

// NewServer creates a backend with an empty root folder.
func NewServer() *Server {
	s := &Server{
		folders: make(map[string]*folder),
		files:   make(map[string]*file),
		counts:  make(map[string]int),
	}
	root := &folder{id: uuid.NewString(), name: "Class Files"}
	s.folders[root.id] = root
	s.rootID = root.id

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/classes/{classID}/folders/root", s.handleGetRoot)
	mux.HandleFunc("GET /api/v1/classes/{classID}/folders/{folderID}", s.handleGetFolder)
	mux.HandleFunc("GET /api/v1/folders/{folderID}/parents", s.handleGetParents)
	mux.HandleFunc("POST /api/v1/classes/{classID}/folders", s.handleCreateFolder)
	mux.HandleFunc("PATCH /api/v1/classes/{classID}/folders/{folderID}", s.handleUpdateFolder)
	mux.HandleFunc("POST /api/v1/classes/{classID}/folders/{folderID}/move", s.handleMoveFolder)
	mux.HandleFunc("DELETE /api/v1/classes/{classID}/folders/{folderID}", s.handleDeleteFolder)
	mux.HandleFunc("POST /api/v1/classes/{classID}/folders/{folderID}/files", s.handleUploadFiles)
	mux.HandleFunc("PATCH /api/v1/classes/{classID}/files/{fileID}", s.handleRenameFile)
	mux.HandleFunc("POST /api/v1/classes/{classID}/files/{fileID}/move", s.handleMoveFile)
	mux.HandleFunc("DELETE /api/v1/classes/{classID}/files/{fileID}", s.handleDeleteFile)
	mux.HandleFunc("GET /api/v1/files/{fileID}/signed-url", s.handleSignedURL)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RootID returns the root folder's ID.
func (s *Server) RootID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootID
}

// SeedFolder adds a folder and returns its ID. An empty parentID means the
// root.
func (s *Server) SeedFolder(parentID, name, color string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parentID == "" {
		parentID = s.rootID
	}
	f := &folder{id: uuid.NewString(), name: name, color: color, parentID: parentID}
	s.folders[f.id] = f
	return f.id
}

// SeedFile adds a file and returns its ID. An empty folderID means the root.
func (s *Server) SeedFile(folderID, name, mime string, size int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if folderID == "" {
		folderID = s.rootID
	}
	f := &file{id: uuid.NewString(), name: name, mime: mime, size: size, folderID: folderID}
	s.files[f.id] = f
	return f.id
}

// OpCount returns how many times an operation was invoked. Operation names:
// folder.getRoot, folder.get, folder.getParents, folder.create,
// folder.update, folder.move, folder.delete, folder.uploadFiles,
// file.rename, file.move, file.delete, file.getSignedUrl.
func (s *Server) OpCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

// FolderOf returns the containing folder ID of a file, and whether the file
// exists.
func (s *Server) FolderOf(fileID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return "", false
	}
	return f.folderID, true
}

// ParentOf returns the parent folder ID of a folder, and whether it exists.
func (s *Server) ParentOf(folderID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[folderID]
	if !ok {
		return "", false
	}
	return f.parentID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg, Code: code})
}

// checkMutate must be called with the lock held.
func (s *Server) checkMutate(w http.ResponseWriter) bool {
	if s.ReadOnly {
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "only teachers can modify class files")
		return false
	}
	return true
}

// record builds the listing payload for a folder. Lock held.
func (s *Server) record(f *folder) models.FolderRecord {
	rec := models.FolderRecord{
		ID:    f.id,
		Name:  f.name,
		Color: f.color,
	}
	if f.parentID != "" {
		rec.ParentFolderID = f.parentID
	}
	for _, child := range s.folders {
		if child.parentID == f.id {
			rec.ChildFolders = append(rec.ChildFolders, models.FolderRecord{
				ID:             child.id,
				Name:           child.name,
				Color:          child.color,
				ParentFolderID: f.id,
				ChildFolders:   s.childFolderStubs(child.id),
				Files:          s.childFileStubs(child.id),
			})
		}
	}
	for _, fl := range s.files {
		if fl.folderID == f.id {
			rec.Files = append(rec.Files, models.FileRecord{
				ID:       fl.id,
				Name:     fl.name,
				Type:     fl.mime,
				Size:     fl.size,
				FolderID: fl.folderID,
			})
		}
	}
	return rec
}

func (s *Server) childFolderStubs(folderID string) []models.FolderRecord {
	var out []models.FolderRecord
	for _, child := range s.folders {
		if child.parentID == folderID {
			out = append(out, models.FolderRecord{ID: child.id, Name: child.name, ParentFolderID: folderID})
		}
	}
	return out
}

func (s *Server) childFileStubs(folderID string) []models.FileRecord {
	var out []models.FileRecord
	for _, fl := range s.files {
		if fl.folderID == folderID {
			out = append(out, models.FileRecord{ID: fl.id, Name: fl.name, Size: fl.size, FolderID: folderID})
		}
	}
	return out
}

// isDescendant reports whether candidate is folderID or inside its subtree.
// Lock held.
func (s *Server) isDescendant(candidate, folderID string) bool {
	for cur := candidate; cur != ""; {
		if cur == folderID {
			return true
		}
		f, ok := s.folders[cur]
		if !ok {
			return false
		}
		cur = f.parentID
	}
	return false
}

// siblingNameTaken reports a name collision among a folder's children.
// Lock held.
func (s *Server) siblingNameTaken(parentID, name, excludeID string) bool {
	for _, f := range s.folders {
		if f.parentID == parentID && f.name == name && f.id != excludeID {
			return true
		}
	}
	for _, f := range s.files {
		if f.folderID == parentID && f.name == name && f.id != excludeID {
			return true
		}
	}
	return false
}

func (s *Server) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.getRoot"]++
	writeJSON(w, http.StatusOK, s.record(s.folders[s.rootID]))
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.get"]++

	f, ok := s.folders[r.PathValue("folderID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "folder not found")
		return
	}
	writeJSON(w, http.StatusOK, s.record(f))
}

func (s *Server) handleGetParents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.getParents"]++

	f, ok := s.folders[r.PathValue("folderID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "folder not found")
		return
	}

	var parents []models.BreadcrumbEntry
	for cur := f.parentID; cur != ""; {
		p, ok := s.folders[cur]
		if !ok {
			break
		}
		parents = append(parents, models.BreadcrumbEntry{ID: p.id, Name: p.name})
		cur = p.parentID
	}
	writeJSON(w, http.StatusOK, models.ParentsResponse{Parents: parents})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.create"]++
	if !s.checkMutate(w) {
		return
	}

	var req models.CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "", "invalid folder payload")
		return
	}
	parentID := req.ParentFolderID
	if parentID == "" {
		parentID = s.rootID
	}
	if _, ok := s.folders[parentID]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "parent folder not found")
		return
	}
	if s.siblingNameTaken(parentID, req.Name, "") {
		writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("%q already exists in folder", req.Name))
		return
	}

	f := &folder{id: uuid.NewString(), name: req.Name, color: req.Color, parentID: parentID}
	s.folders[f.id] = f
	writeJSON(w, http.StatusCreated, s.record(f))
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.update"]++
	if !s.checkMutate(w) {
		return
	}

	f, ok := s.folders[r.PathValue("folderID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "folder not found")
		return
	}
	var req models.UpdateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "", "invalid folder payload")
		return
	}
	if s.siblingNameTaken(f.parentID, req.Name, f.id) {
		writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("%q already exists in folder", req.Name))
		return
	}
	f.name = req.Name
	f.color = req.Color
	writeJSON(w, http.StatusOK, s.record(f))
}

func (s *Server) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.move"]++
	if !s.checkMutate(w) {
		return
	}

	f, ok := s.folders[r.PathValue("folderID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "folder not found")
		return
	}
	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid move payload")
		return
	}
	targetID := req.TargetFolderID
	if targetID == "" {
		targetID = s.rootID
	}
	if _, ok := s.folders[targetID]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "target folder not found")
		return
	}
	// The backend is the authoritative rejector for cycles.
	if s.isDescendant(targetID, f.id) {
		writeError(w, http.StatusBadRequest, "INVALID_MOVE", "cannot move a folder into itself or its own subtree")
		return
	}
	if s.siblingNameTaken(targetID, f.name, f.id) {
		writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("%q already exists in folder", f.name))
		return
	}
	f.parentID = targetID
	writeJSON(w, http.StatusOK, s.record(f))
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.delete"]++
	if !s.checkMutate(w) {
		return
	}

	id := r.PathValue("folderID")
	f, ok := s.folders[id]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "folder not found")
		return
	}
	if f.id == s.rootID {
		writeError(w, http.StatusBadRequest, "", "cannot delete the root folder")
		return
	}

	// Cascade: remove the subtree and every file in it. Collect first so
	// ancestor walks still see the intact tree.
	var doomed []string
	for fid := range s.folders {
		if s.isDescendant(fid, id) {
			doomed = append(doomed, fid)
		}
	}
	for _, fid := range doomed {
		delete(s.folders, fid)
	}
	for flid, fl := range s.files {
		if _, ok := s.folders[fl.folderID]; !ok {
			delete(s.files, flid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["folder.uploadFiles"]++
	if !s.checkMutate(w) {
		return
	}

	f, ok := s.folders[r.PathValue("folderID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "folder not found")
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "expected multipart upload")
		return
	}

	var created []models.FileRecord
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		if part.FormName() != "files" {
			continue
		}
		size := int64(0)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := part.Read(buf)
			size += int64(n)
			if rerr != nil {
				break
			}
		}
		if s.siblingNameTaken(f.id, part.FileName(), "") {
			writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("%q already exists in folder", part.FileName()))
			return
		}
		fl := &file{
			id:       uuid.NewString(),
			name:     part.FileName(),
			mime:     part.Header.Get("Content-Type"),
			size:     size,
			folderID: f.id,
		}
		s.files[fl.id] = fl
		created = append(created, models.FileRecord{
			ID:       fl.id,
			Name:     fl.name,
			Type:     fl.mime,
			Size:     fl.size,
			FolderID: fl.folderID,
		})
	}
	writeJSON(w, http.StatusCreated, struct {
		Files []models.FileRecord `json:"files"`
	}{Files: created})
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["file.rename"]++
	if !s.checkMutate(w) {
		return
	}

	fl, ok := s.files[r.PathValue("fileID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}
	var req models.RenameFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "", "invalid rename payload")
		return
	}
	if s.siblingNameTaken(fl.folderID, req.Name, fl.id) {
		writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("%q already exists in folder", req.Name))
		return
	}
	fl.name = req.Name
	writeJSON(w, http.StatusOK, models.FileRecord{
		ID: fl.id, Name: fl.name, Type: fl.mime, Size: fl.size, FolderID: fl.folderID,
	})
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["file.move"]++
	if !s.checkMutate(w) {
		return
	}

	fl, ok := s.files[r.PathValue("fileID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}
	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid move payload")
		return
	}
	targetID := req.TargetFolderID
	if targetID == "" {
		targetID = s.rootID
	}
	if _, ok := s.folders[targetID]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "target folder not found")
		return
	}
	if s.siblingNameTaken(targetID, fl.name, fl.id) {
		writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("%q already exists in folder", fl.name))
		return
	}
	fl.folderID = targetID
	writeJSON(w, http.StatusOK, models.FileRecord{
		ID: fl.id, Name: fl.name, Type: fl.mime, Size: fl.size, FolderID: fl.folderID,
	})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["file.delete"]++
	if !s.checkMutate(w) {
		return
	}

	id := r.PathValue("fileID")
	if _, ok := s.files[id]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}
	delete(s.files, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts["file.getSignedUrl"]++

	fl, ok := s.files[r.PathValue("fileID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}
	writeJSON(w, http.StatusOK, models.SignedURLResponse{
		URL:       fmt.Sprintf("https://files.studious.test/signed/%s", fl.id),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	})
}
