package mailer

import "fmt"

// HTML bodies for the transactional emails FairPay sends. Kept as plain
// fmt.Sprintf templates; there is no layout to share.

func VerificationCodeBody(code string) (subject, html string) {
	subject = "Votre code de connexion FairPay"
	html = fmt.Sprintf(`<p>Bonjour,</p>
<p>Votre code de connexion est : <strong>%s</strong></p>
<p>Il expire dans 10 minutes.</p>
<p>— FairPay</p>`, code)
	return
}

func PaymentConfirmedBody(reference string) (subject, html string) {
	subject = fmt.Sprintf("Paiement reçu — dossier %s", reference)
	html = fmt.Sprintf(`<p>Bonjour,</p>
<p>Nous avons bien reçu votre paiement. Votre dossier <strong>%s</strong> est
maintenant pris en charge par nos équipes.</p>
<p>— FairPay</p>`, reference)
	return
}

func InjonctionPaidBody(reference string) (subject, html string) {
	subject = fmt.Sprintf("Injonction de payer — dossier %s", reference)
	html = fmt.Sprintf(`<p>Bonjour,</p>
<p>Le paiement de la requête en injonction de payer pour le dossier
<strong>%s</strong> a été confirmé. Une facture vous sera adressée séparément.</p>
<p>— FairPay</p>`, reference)
	return
}

func LrarSentOwnerBody(reference, preview string) (subject, html string) {
	subject = fmt.Sprintf("Mise en demeure envoyée — dossier %s", reference)
	html = fmt.Sprintf(`<p>Bonjour,</p>
<p>La mise en demeure (LRAR) de votre dossier <strong>%s</strong> a été
envoyée au débiteur.</p>
<p>%s</p>
<p>— FairPay</p>`, reference, preview)
	return
}

func LrarSentDebtorBody(reference, creditorName string) (subject, html string) {
	subject = fmt.Sprintf("Mise en demeure — dossier %s", reference)
	html = fmt.Sprintf(`<p>Bonjour,</p>
<p>Une mise en demeure vous a été adressée par lettre recommandée avec accusé
de réception dans le cadre du dossier <strong>%s</strong> pour le compte de
%s. Vous pouvez régulariser votre situation sans délai.</p>
<p>— FairPay</p>`, reference, creditorName)
	return
}
