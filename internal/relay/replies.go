package relay

import (
	"fmt"

	"github.com/zapbridge/zapbridge/internal/domain"
)

// User-facing reply texts. Kept in one place so the dialog tests can assert
// exact wording.
const (
	replyAskEmail      = "Digite o novo email para receber notificações:"
	replyExitConfig    = "Saindo do modo de configuração. Bot voltando ao modo normal."
	replyInvalidOption = "Opção inválida.\n1 - Definir email\n2 - Sair"
	replyEmailInvalid  = "Email inválido. Tente novamente ou envie 2 para sair."

	replyUnsupportedMedia = "❌ Apenas imagens (JPG, PNG) e PDFs são aceitos."
	replyDownloadFailed   = "Não foi possível baixar o arquivo para enviar por email."
	replyNoRecipient      = "Nenhum email configurado. Envie #CONFIG para definir o email de destino."
	replyInternalError    = "❌ Ocorreu um erro ao processar sua mensagem. Tente novamente."
)

const (
	statusDefaultEmail = "(padrão do sistema)"
	statusCustomEmail  = "(personalizado)"
)

func replyMenu(current string, isDefault bool) string {
	if current == "" {
		return "Nenhum email configurado.\nEscolha uma opção:\n1 - Definir email personalizado\n2 - Sair"
	}
	status := statusCustomEmail
	if isDefault {
		status = statusDefaultEmail
	}
	return fmt.Sprintf("Email atual: %s %s\nEscolha uma opção:\n1 - Definir email personalizado\n2 - Sair", current, status)
}

func replyEmailUpdated(email string) string {
	return fmt.Sprintf("Email atualizado para: %s\nSaindo do modo de configuração.", email)
}

func replyRelayFailed(err error) string {
	return fmt.Sprintf("Erro ao enviar email: %v", err)
}

func replyRelayConfirmation(kind domain.MediaKind, recipient string, defaultUsed bool, title string) string {
	status := " (email personalizado)"
	if defaultUsed {
		status = " (email padrão)"
	}
	msg := fmt.Sprintf("✅ %s enviada para: %s%s", domain.KindLabel(kind), recipient, status)
	if title != "" {
		msg += fmt.Sprintf("\n📧 Título: %q", title)
	}
	return msg
}

func replyHelp(defaultRecipient string) string {
	help := "🤖 *Bot WhatsApp Ativo*\n\n"
	if defaultRecipient != "" {
		help += fmt.Sprintf("📧 *Email padrão configurado:* %s\n\n", defaultRecipient)
	}
	help += "📋 *Como usar:*\n" +
		"• Envie uma *imagem* ou *PDF* para receber por email\n" +
		"• Adicione um *texto junto com a imagem* para usar como título do email\n" +
		"• Digite *#CONFIG* para configurar email personalizado\n\n" +
		"✅ Pronto para receber seus arquivos!"
	return help
}
