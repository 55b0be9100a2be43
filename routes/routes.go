package routes

import (
	"github.com/frisbee-cz/evidence/handlers"
	"github.com/frisbee-cz/evidence/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes mounts the full API surface. Federation office endpoints sit
// behind RequireAdmin, everything else behind the bearer token middleware,
// except the handful of public routes (registration, login, email
// confirmation, websocket upgrade).
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	clubHandler *handlers.ClubHandler,
	memberHandler *handlers.MemberHandler,
	competitionHandler *handlers.CompetitionHandler,
	rosterHandler *handlers.RosterHandler,
	transferHandler *handlers.TransferHandler,
	financeHandler *handlers.FinanceHandler,
	internationalHandler *handlers.InternationalHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes.
	router.Post("/agents/register", authHandler.Register)
	router.Post("/agents/login", authHandler.Login)
	router.Get("/members/confirm-email/{token}", memberHandler.ConfirmEmail)
	router.Get("/ws/clubs/{clubID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Route("/agents", func(r chi.Router) {
			r.Get("/me", authHandler.Me)
			r.Put("/me/email-notifications", authHandler.SetEmailNotifications)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/affiliations", authHandler.AddAffiliation)
				r.Put("/affiliations/{affiliationID}/active", authHandler.SetAffiliationActive)
			})
		})

		r.Route("/clubs", func(r chi.Router) {
			r.Get("/", clubHandler.ListClubs)
			r.Get("/{clubID}", clubHandler.GetClub)
			r.Put("/{clubID}", clubHandler.UpdateClub)
			r.Post("/{clubID}/logo", clubHandler.UploadLogo)

			r.Post("/{clubID}/teams", clubHandler.CreateTeam)
			r.Get("/{clubID}/teams", clubHandler.ListTeams)

			r.Get("/{clubID}/notifications", clubHandler.ListNotifications)
			r.Put("/{clubID}/notifications/{notificationID}/read", clubHandler.MarkNotificationRead)

			r.Post("/{clubID}/members", memberHandler.CreateMember)
			r.Get("/{clubID}/members", memberHandler.ListMembers)
			r.Get("/{clubID}/members/search", rosterHandler.SearchMembers)

			r.Get("/{clubID}/transfers", transferHandler.ListTransfers)

			r.Post("/{clubID}/invoices/deposit", financeHandler.CreateDepositInvoice)
			r.Get("/{clubID}/invoices", financeHandler.ListClubInvoices)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", clubHandler.CreateClub)
				r.Put("/{clubID}/fakturoid-subject", clubHandler.SetFakturoidSubject)
			})
		})

		r.Route("/teams", func(r chi.Router) {
			r.Put("/{teamID}", clubHandler.RenameTeam)
			r.Delete("/{teamID}", clubHandler.DeleteTeam)
		})

		r.Route("/members", func(r chi.Router) {
			r.Get("/{memberID}", memberHandler.GetMember)
			r.Put("/{memberID}", memberHandler.UpdateMember)
			r.Put("/{memberID}/active", memberHandler.SetActive)
			r.Get("/{memberID}/coach-licences", memberHandler.ListCoachLicences)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/{memberID}/coach-licences", memberHandler.AddCoachLicence)
			})
		})

		r.Route("/seasons", func(r chi.Router) {
			r.Get("/", competitionHandler.ListSeasons)
			r.Get("/{seasonID}", competitionHandler.GetSeason)
			r.Get("/{seasonID}/competitions", competitionHandler.ListCompetitions)
			r.Get("/{seasonID}/international-tournaments", internationalHandler.ListTournaments)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", competitionHandler.CreateSeason)
				r.Put("/{seasonID}", competitionHandler.UpdateSeason)
				r.Post("/{seasonID}/invoices", financeHandler.GenerateSeasonInvoices)
				r.Post("/{seasonID}/invoices/dry-run", financeHandler.DryRunSeasonInvoices)
				r.Post("/{seasonID}/fee-check", financeHandler.CheckSeasonFees)
				r.Post("/{seasonID}/nsa-export", financeHandler.GenerateNSAExport)
			})
		})

		r.Get("/divisions", competitionHandler.ListDivisions)
		r.Get("/age-limits", competitionHandler.ListAgeLimits)

		r.Route("/competitions", func(r chi.Router) {
			r.Get("/{competitionID}", competitionHandler.GetCompetition)
			r.Get("/{competitionID}/tournaments", competitionHandler.ListTournaments)
			r.Get("/{competitionID}/fees", financeHandler.CompetitionOnlyFees)

			r.Post("/{competitionID}/applications", competitionHandler.RegisterTeam)
			r.Get("/{competitionID}/applications", competitionHandler.ListApplications)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", competitionHandler.CreateCompetition)
				r.Post("/{competitionID}/tournaments", competitionHandler.CreateTournament)
			})
		})

		r.Route("/applications", func(r chi.Router) {
			r.Post("/{applicationID}/withdraw", competitionHandler.WithdrawApplication)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Put("/{applicationID}/state", competitionHandler.SetApplicationState)
			})
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/{tournamentID}", competitionHandler.GetTournament)
		})

		r.Route("/team-at-tournaments", func(r chi.Router) {
			r.Post("/{teamAtTournamentID}/roster", rosterHandler.AddMember)
			r.Get("/{teamAtTournamentID}/roster", rosterHandler.ListRoster)
		})

		r.Route("/roster-entries", func(r chi.Router) {
			r.Put("/{entryID}", rosterHandler.UpdateMember)
			r.Delete("/{entryID}", rosterHandler.RemoveMember)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", transferHandler.RequestTransfer)
			r.Post("/{transferID}/approve", transferHandler.ApproveTransfer)
			r.Post("/{transferID}/revoke", transferHandler.RevokeTransfer)
			// Rejection belongs to the approving club's agents; the service
			// checks their affiliation.
			r.Post("/{transferID}/reject", transferHandler.RejectTransfer)
		})

		r.Route("/international", func(r chi.Router) {
			r.Get("/tournaments/{tournamentID}", internationalHandler.GetTournament)
			r.Get("/tournaments/{tournamentID}/teams", internationalHandler.ListTeams)
			r.Post("/teams", internationalHandler.RegisterTeam)

			r.Post("/teams/{teamAtTournamentID}/roster", rosterHandler.AddInternationalMember)
			r.Get("/teams/{teamAtTournamentID}/roster", rosterHandler.ListInternationalRoster)
			r.Put("/roster-entries/{entryID}", rosterHandler.UpdateInternationalMember)
			r.Delete("/roster-entries/{entryID}", rosterHandler.RemoveInternationalMember)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/tournaments", internationalHandler.CreateTournament)
				r.Put("/teams/{teamID}/result", internationalHandler.RecordResult)
			})
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/{invoiceID}", financeHandler.GetInvoice)
		})
	})
}
