package handlers

import "net/http"

// Register wires every API route onto mux
func Register(mux *http.ServeMux, mw *Middleware, families *FamilyHandler, tasks *TaskHandler) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Families
	mux.HandleFunc("POST /families", mw.RequireAuth(families.CreateFamily))
	mux.HandleFunc("GET /families/me", mw.RequireAuth(families.GetMyFamily))
	mux.HandleFunc("POST /families/join", mw.RequireAuth(mw.RateLimit(families.JoinFamily)))
	mux.HandleFunc("POST /families/leave", mw.RequireAuth(families.LeaveFamily))
	mux.HandleFunc("GET /families/{id}", mw.RequireAuth(families.GetFamily))
	mux.HandleFunc("PATCH /families/{id}", mw.RequireAuth(families.UpdateFamily))
	mux.HandleFunc("POST /families/{id}/invite-code", mw.RequireAuth(families.RegenerateInviteCode))
	mux.HandleFunc("GET /families/{id}/members", mw.RequireAuth(families.GetFamilyMembers))
	mux.HandleFunc("DELETE /families/{id}/members/{userId}", mw.RequireAuth(families.RemoveMember))
	mux.HandleFunc("PUT /families/{id}/members/{userId}/role", mw.RequireAuth(families.ChangeMemberRole))

	// Tasks
	mux.HandleFunc("POST /families/{id}/tasks", mw.RequireAuth(tasks.CreateTask))
	mux.HandleFunc("GET /families/{id}/tasks", mw.RequireAuth(tasks.ListTasks))
	mux.HandleFunc("GET /tasks/{id}", mw.RequireAuth(tasks.GetTask))
	mux.HandleFunc("POST /tasks/{id}/complete", mw.RequireAuth(tasks.CompleteTask))
}
