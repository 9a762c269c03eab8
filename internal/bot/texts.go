package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/dvloznov/telegrind/internal/domain"
)

const (
	textRecorded          = "Записала!"
	textEdited            = "Поправила!"
	textDeleted           = "Удалила!"
	textNotFound          = "Не нашла этого в книге..."
	textNotUnderstood     = "Не поняла... \n\n"
	textEditNotUnderstood = "Не поняла правку, запись осталась как была."
	textSaved             = "Сохранила!"
	textFailed            = "Что-то пошло не так, попробуйте ещё раз."
	textNotBound          = "Сначала подключите документ: /start"
	textNoReceiptURL      = "Не вижу на фото ссылку на чек. Пришлите её текстом."
)

const tips = `<b>Расходы</b>
<code>500</code> - расход в валюте по умолчанию
<code>101.5 шоколадка</code> - с комментарием
<code>5,4 USD хостинг</code> - в указанной валюте
<code>500 KZT 01.01.2024 такси</code> - с датой
<code>2000 ужин вчера</code> - дата словами
<code>вчера потратила 2000 на ужин</code> - в свободной форме

<b>Долги</b>
<code>долг Вася 5000</code> - дали в долг
<code>долг Вася +2000 вернул часть</code> - вернули

<b>Хотелки</b>
<code>хочу 30000 наушники</code>

<b>Чеки</b>
Фото чека с QR-кодом или ссылка consumer.oofd.kz

Исправьте своё сообщение, чтобы поправить запись, или ответьте на него "-", чтобы удалить.
Настройки документа: /settings`

const settingsUsage = `Настройки: <code>/settings tz=6 currency=KZT</code>
tz - смещение от UTC в часах, currency - валюта по умолчанию.`

func onboardingText(serviceAccount string) string {
	return fmt.Sprintf(`Привет! Я записываю расходы, долги и хотелки в Google Таблицу.

Создайте таблицу, выдайте права редактора <code>%s</code> и пришлите мне ссылку на неё.`,
		html.EscapeString(serviceAccount))
}

func boundText() string {
	return "Всё круто, теперь вы можете отправлять мне:\n\n" + tips
}

func alreadyBoundText(title string) string {
	return fmt.Sprintf("За этим чатом уже закреплён документ %q", title)
}

func accessErrorText(err error) string {
	return "Не удалось получить доступ к документу. Убедитесь, что вы выдали мне права редактора, и вышлите ссылку снова. Детали: \n" + err.Error()
}

func malformedReceiptText(err error) string {
	return "Не получилось прочитать чек. Детали: \n" + err.Error()
}

func settingsText(cfg domain.DocumentConfig) string {
	return fmt.Sprintf("Часовой пояс: UTC%+d\nВалюта по умолчанию: %s\n\n%s",
		cfg.UTCOffsetHours, cfg.DefaultCurrency, settingsUsage)
}

// freeformText echoes a model-extracted expense so the user can check it.
func freeformText(rec domain.Record, cfg domain.DocumentConfig, worksheet, remark string) string {
	var b strings.Builder
	b.WriteString("<code>")
	b.WriteString(html.EscapeString(domain.Display(rec, cfg.Location())))
	b.WriteString("</code>")
	if remark != "" {
		b.WriteString("\n\n<i>")
		b.WriteString(html.EscapeString(remark))
		b.WriteString("</i>")
	}
	fmt.Fprintf(&b, "\n\n<tg-spoiler>%d@%s</tg-spoiler>", rec.SourceMessageID, html.EscapeString(worksheet))
	return b.String()
}

func receiptText(expense domain.Record, lines int, cfg domain.DocumentConfig) string {
	return fmt.Sprintf("%s %s, позиций: %d", textRecorded, domain.Display(expense, cfg.Location()), lines)
}
