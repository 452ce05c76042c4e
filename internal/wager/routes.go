package wager

import "github.com/go-chi/chi/v5"

// Routes mounts the API on r. The WebSocket endpoint is only mounted when a
// hub is configured.
func (s *Service) Routes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", s.CreateEvent)
		r.Get("/", s.ListEvents)
		r.Route("/{eventID}", func(r chi.Router) {
			r.Get("/", s.GetEvent)
			r.Get("/odds", s.GetOdds)
			r.Get("/history", s.GetEventHistory)
			r.Get("/positions/{participant}", s.GetPosition)
			r.Post("/stake", s.PlaceStake)
			r.Post("/unstake", s.RemoveStake)
			r.Post("/lock", s.LockEvent)
			r.Post("/outcome", s.SetOutcome)
			r.Post("/score", s.ReportScore)
			r.Post("/redeem", s.Redeem)
		})
	})
	r.Get("/participants/{participant}/history", s.GetParticipantHistory)
	r.Get("/leaderboard", s.GetLeaderboard)
	r.Get("/remainder", s.GetRemainder)
	r.Get("/audit", s.Audit)
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
}
