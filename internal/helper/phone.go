package helper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var ErrInvalidNumber = errors.New("invalid phone number format")

var digitsOnly = regexp.MustCompile(`^\d+$`)

// ChatID converts a phone number into the WhatsApp JID used to address the chat.
// Number harus digit saja (tanpa +, spasi, atau tanda hubung).
func ChatID(number string) (types.JID, error) {
	if !digitsOnly.MatchString(number) {
		return types.JID{}, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	return types.NewJID(number, types.DefaultUserServer), nil
}

func ExtractPhoneFromJID(jid string) string {
	// "6285148107612:43@s.whatsapp.net" -> "6285148107612"
	atSplit := strings.SplitN(jid, "@", 2)
	beforeAt := atSplit[0]
	colonSplit := strings.SplitN(beforeAt, ":", 2)
	return colonSplit[0]
}
