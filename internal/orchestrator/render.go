package orchestrator

import (
	"fmt"
	"strings"

	"github.com/shubhsaxena/tour-concierge/internal/dialog"
	"github.com/shubhsaxena/tour-concierge/internal/models"
)

const (
	msgGreeting          = "Привет! Я подбираю пакетные туры."
	msgSmalltalkAck      = "Рад помочь!"
	msgCancelled         = "Поиск отменён. Напишите, куда хотите поехать, когда будете готовы."
	msgStartOver         = "Начнём заново."
	msgSearchFailed      = "Поиск туров сейчас недоступен. Попробуйте ещё раз или измените фильтры."
	msgNoResults         = "По этим параметрам ничего не нашлось. Попробуйте увеличить бюджет или изменить даты."
	msgNoMoreResults     = "Больше вариантов по этим параметрам нет. Измените фильтры или начните новый поиск."
	msgTimedOut          = "Поиск занял больше времени, чем обычно. Показываю то, что успел найти."
	msgStaleResults      = "Показываю сохранённые результаты: цены могли измениться."
	msgNothingToShow     = "Пока нечего показывать."
	msgNothingToRetry    = "Нечего повторять."
	msgAlreadyChecked    = "Уже проверяю этот вариант, секунду."
	msgResultExpired     = "Этот вариант устарел. Выберите из последних результатов."
	msgButtonExpired     = "Кнопка устарела."
	msgPhonePrompt       = "Пришлите номер телефона, например +7 999 123-45-67, или напишите «отмена»."
	msgPhoneInvalid      = "Номер должен содержать от 10 до 15 цифр. Пришлите номер ещё раз или напишите «отмена»."
	msgLeadFailed        = "Не удалось сохранить заявку. Пришлите номер ещё раз чуть позже."
	msgFavAdded          = "Добавлено в избранное"
	msgFavExists         = "Уже в избранном"
	msgFavEmpty          = "В избранном пока пусто."
	msgFavCleared        = "Избранное очищено."
	msgCollectionSaved   = "Подборка сохранена"
	msgCollectionRemoved = "Подборка удалена"
	msgEditHint          = "Напишите, что изменить: страну, количество ночей, бюджет, месяц вылета или питание."
	msgHelp              = "Напишите, куда и на сколько хотите поехать и какой у вас бюджет, например: «Турция на 7 ночей до 120 000 ₽, всё включено». " +
		"Потом можно уточнять: «в августе», «дешевле», «10 ночей». Команды: «ещё», «изменить фильтры», «новый поиск», «избранное», «отмена»."
	msgMeta              = "Я бот для подбора туров: ищу варианты по направлению, числу ночей и бюджету и помогаю оставить заявку."
)

func resultButtons(requestID string, hotelID int) []Button {
	return []Button{
		{Text: "Забронировать", Token: ResultToken(TokenSelect, requestID, hotelID)},
		{Text: "В избранное", Token: ResultToken(TokenFavorite, requestID, hotelID)},
	}
}

func footerButtons(hasMore bool) []Button {
	var out []Button
	if hasMore {
		out = append(out, Button{Text: "Показать ещё", Token: TokenMore})
	}
	return append(out,
		Button{Text: "Изменить фильтры", Token: TokenEdit},
		Button{Text: "Сохранить подборку", Token: TokenSaveCollection},
		Button{Text: "Новый поиск", Token: TokenNew},
	)
}

func failureButtons() []Button {
	return []Button{
		{Text: "Повторить", Token: TokenRetry},
		{Text: "Изменить фильтры", Token: TokenEdit},
	}
}

func budgetButtons() []Button {
	return []Button{
		{Text: "Потолок", Token: TokenBudget + ":" + dialog.BudgetAnswerMax},
		{Text: "Ориентир", Token: TokenBudget + ":" + dialog.BudgetAnswerTarget},
		{Text: "Без ограничений", Token: TokenBudget + ":" + dialog.BudgetAnswerAny},
	}
}

// caption renders one result card.
func caption(r models.TourResult) string {
	var b strings.Builder
	name := r.HotelName
	if name == "" {
		name = fmt.Sprintf("Отель #%d", r.HotelID)
	}
	b.WriteString(name)
	if r.Stars > 0 {
		fmt.Fprintf(&b, " %d*", r.Stars)
	}
	if r.Region != "" {
		b.WriteString("\n" + r.Region)
	}

	var details []string
	if r.Nights > 0 {
		details = append(details, fmt.Sprintf("%d ноч.", r.Nights))
	}
	if r.DateFrom != "" {
		details = append(details, "вылет "+r.DateFrom)
	}
	if r.Meal != "" {
		details = append(details, r.Meal)
	}
	if r.Rating > 0 {
		details = append(details, fmt.Sprintf("рейтинг %.1f", r.Rating))
	}
	if len(details) > 0 {
		b.WriteString("\n" + strings.Join(details, ", "))
	}

	b.WriteString("\n" + price(r.Price, r.Currency))
	if r.Operator != "" {
		b.WriteString(" · " + r.Operator)
	}
	return b.String()
}

func price(amount int, currency string) string {
	switch currency {
	case "", "RUB", "RUR":
		return dialog.FormatRub(amount) + " ₽"
	}
	return dialog.FormatRub(amount) + " " + currency
}

func searchingText(spec models.SearchSpec) string {
	return "Ищу туры: " + dialog.Summary(spec) + "."
}

func refiningText(spec models.SearchSpec, countrySwitch bool) string {
	if countrySwitch {
		return "Меняю направление на " + spec.Country.Label() + ". Ищу: " + dialog.Summary(spec) + "."
	}
	return "Обновляю поиск: " + dialog.Summary(spec) + "."
}

func unsupportedText(label string) string {
	return fmt.Sprintf("Туры в «%s» я пока не подбираю. Доступные направления: %s.", label, dialog.CountryList())
}

func bookingText(t models.TourResult) string {
	name := t.HotelName
	if name == "" {
		name = fmt.Sprintf("отель #%d", t.HotelID)
	}
	return fmt.Sprintf("Отличный выбор: %s за %s. %s", name, price(t.Price, t.Currency), msgPhonePrompt)
}

func leadText(phone string) string {
	return "Спасибо! Менеджер свяжется с вами по номеру " + phone + " в ближайшее время."
}

func favoritesText(f models.Favorites) (string, []Button) {
	if f.IsEmpty() {
		return msgFavEmpty, nil
	}
	var b strings.Builder
	var buttons []Button
	if len(f.Tours) > 0 {
		b.WriteString("Избранные туры:")
		for i, t := range f.Tours {
			name := t.HotelName
			if name == "" {
				name = fmt.Sprintf("Отель #%d", t.HotelID)
			}
			fmt.Fprintf(&b, "\n%d. %s, %s", i+1, name, price(t.Price, t.Currency))
		}
	}
	for i, c := range f.Collections {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Подборка %d: %s (%d вар.)", i+1, dialog.Summary(c.Spec), len(c.Tours))
		buttons = append(buttons, Button{
			Text:  fmt.Sprintf("Удалить подборку %d", i+1),
			Token: TokenDelCollection + ":" + c.ID,
		})
	}
	buttons = append(buttons, Button{Text: "Очистить избранное", Token: TokenFavClear})
	return b.String(), buttons
}

func clarifyText(questions []string) string {
	if len(questions) == 0 {
		return "Не совсем понял. " + dialog.Prompt(models.SlotCountry)
	}
	return "Не совсем понял. Подскажите:\n" + strings.Join(questions, "\n")
}
