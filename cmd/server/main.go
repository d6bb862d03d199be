// @title           FairPay API
// @version         1.0
// @description     API for FairPay: users open debt-collection procedures, upload supporting documents, pay fees via Stripe, and lawyers process procedures and dispatch formal notices (LRAR).
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v82"

	"github.com/fairpay-app/fairpay-backend/pkg/database"
	"github.com/fairpay-app/fairpay-backend/pkg/models"

	// Docs
	_ "github.com/fairpay-app/fairpay-backend/docs"
	"github.com/fairpay-app/fairpay-backend/internal/auth"
	"github.com/fairpay-app/fairpay-backend/internal/billing"
	"github.com/fairpay-app/fairpay-backend/internal/documents"
	"github.com/fairpay-app/fairpay-backend/internal/mailer"
	"github.com/fairpay-app/fairpay-backend/internal/payments"
	"github.com/fairpay-app/fairpay-backend/internal/procedures"
	"github.com/fairpay-app/fairpay-backend/internal/storage"
	fiberSwagger "github.com/gofiber/swagger"
)

func main() {
	_ = godotenv.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	db := database.Init()
	if err := db.AutoMigrate(
		&models.User{}, &models.Procedure{}, &models.Debtor{}, &models.Document{},
		&models.Payment{}, &models.Subscription{}, &models.ProcedureHistory{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    12 * 1024 * 1024, // uploads are capped at 10MB in the handler
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")

	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	// Collaborators
	sb := storage.NewSupabase() // uses SUPABASE_URL / SUPABASE_SERVICE_KEY / SUPABASE_BUCKET
	mail := mailer.NewResend()  // uses RESEND_API_KEY / MAIL_FROM
	gw := payments.NewStripeGateway()

	// Auth
	authH := auth.NewHandler(db, mail)
	api.Post("/auth/send-code", authH.SendCode)
	api.Post("/auth/verify-code", authH.VerifyCode)
	api.Get("/auth/me", auth.RequireAuth(), authH.Me)
	api.Patch("/auth/me", auth.RequireAuth(), authH.UpdateMe)

	// Procedures
	procH := procedures.NewHandler(db, mail, sb)
	lawyerSide := auth.RequireRole(db, models.RoleLawyer, models.RoleParalegal)
	lawyerOnly := auth.RequireRole(db, models.RoleLawyer)
	// Static routes before parameterized ones so /:id doesn't shadow them
	api.Post("/procedures", auth.RequireAuth(), procH.Create)
	api.Get("/procedures/mine", auth.RequireAuth(), procH.ListMine)
	api.Get("/procedures/pending", auth.RequireAuth(), lawyerSide, procH.Pending)
	api.Get("/procedures/:id", auth.RequireAuth(), procH.GetDetail)
	api.Delete("/procedures/:id", auth.RequireAuth(), procH.DeleteDraft)
	api.Post("/procedures/:id/assign", auth.RequireAuth(), lawyerOnly, procH.Assign)
	api.Post("/procedures/:id/request-injonction", auth.RequireAuth(), lawyerOnly, procH.RequestInjonction)
	api.Post("/procedures/:id/send-lrar", auth.RequireAuth(), lawyerOnly, procH.SendLrar)

	// Documents
	docH := documents.NewHandler(db, sb)
	api.Post("/files/upload", auth.RequireAuth(), docH.Upload)
	api.Get("/procedures/:id/documents", auth.RequireAuth(), docH.ListByProcedure)
	api.Delete("/documents/:documentId", auth.RequireAuth(), docH.Delete)
	api.Get("/documents/:documentId/signed-url", auth.RequireAuth(), docH.GetSignedURL)

	// Payments
	payH := payments.NewHandler(db, gw, mail)
	api.Post("/stripe/create-checkout-session", auth.RequireAuth(), payH.CreateCheckoutSession)
	api.Post("/stripe/verify-payment", auth.RequireAuth(), payH.VerifyPayment)
	api.Post("/stripe/create-injonction-intent", auth.RequireAuth(), payH.CreateInjonctionIntent)
	api.Post("/stripe/confirm-injonction-payment", auth.RequireAuth(), payH.ConfirmInjonctionPayment)

	// Billing
	billH := billing.NewHandler(db, gw)
	api.Post("/stripe/create-subscription", auth.RequireAuth(), lawyerOnly, billH.CreateSubscription)
	api.Post("/stripe/sync-subscription", auth.RequireAuth(), billH.SyncSubscription)

	// Stripe Webhook (server-only, signature-verified, no auth)
	api.Post("/stripe/webhook", billH.Webhook)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	log.Println("Server running on :" + port)
	log.Fatal(app.Listen(":" + port))
}
