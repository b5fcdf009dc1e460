package service

import (
	"fmt"
	"html"
	"strings"

	"taxidispatch/pkg/models"
)

// Chat messages are sent with HTML parse mode; user supplied text is escaped.

var stepPrompts = map[models.RegistrationStep]string{
	models.StepCarBrand: "🚗 Введите марку автомобиля (например: Toyota, Hyundai, Kia):",
	models.StepCarModel: "🚗 Введите модель автомобиля:",
	models.StepCarColor: "🎨 Введите цвет автомобиля:",
	models.StepCarPlate: "🔢 Введите гос. номер автомобиля:",
}

const (
	textAcceptButton   = "✅ Принять заказ"
	textCompleteButton = "✅ Завершить заказ"

	textTripCompleted        = "✅ <b>Поездка завершена!</b>\n\nСпасибо за использование нашего сервиса!"
	textCancelledByAdmin     = "❌ <b>Ваш заказ отменён администратором</b>"
	textContinueRegistration = "🚕 Вы ещё не завершили регистрацию!\n\n"
)

func esc(s string) string {
	return html.EscapeString(s)
}

func orderFooter(o *models.Order) string {
	return fmt.Sprintf("🆔 Заказ: <code>%s</code>", esc(o.ShortID()))
}

func route(o *models.Order) string {
	return fmt.Sprintf("📍 <b>Откуда:</b> %s\n📍 <b>Куда:</b> %s", esc(o.AddressFrom), esc(o.AddressTo))
}

func broadcastText(o *models.Order) string {
	var b strings.Builder
	b.WriteString("🚖 <b>Новый заказ!</b>\n\n")
	b.WriteString(route(o))
	b.WriteString("\n")
	if o.Comment != "" {
		fmt.Fprintf(&b, "💬 <b>Комментарий:</b> %s\n", esc(o.Comment))
	}
	if o.ClientPhone != "" {
		fmt.Fprintf(&b, "📞 <b>Телефон клиента:</b> %s\n", esc(o.ClientPhone))
	}
	b.WriteString("\n")
	b.WriteString(orderFooter(o))
	return b.String()
}

func takenText(o *models.Order) string {
	return fmt.Sprintf("✅ <b>Заказ принят</b>\n\n%s\n\n👤 <b>Водитель:</b> %s\n🚗 <b>Авто:</b> %s\n%s",
		route(o), esc(o.DriverName), esc(o.DriverCar), orderFooter(o))
}

func cancelledByClientText(o *models.Order) string {
	return "❌ <b>Заказ отменён клиентом</b>\n\n" + orderFooter(o)
}

func cancelledByAdminText(o *models.Order) string {
	return "❌ <b>Заказ отменён администратором</b>\n\n" + orderFooter(o)
}

func driverAssignedText(o *models.Order) string {
	text := fmt.Sprintf("🚖 <b>Водитель назначен!</b>\n\n👤 <b>Водитель:</b> %s\n🚗 <b>Автомобиль:</b> %s",
		esc(o.DriverName), esc(o.DriverCar))
	if o.DriverPhone != "" {
		text += fmt.Sprintf("\n📞 <b>Телефон:</b> %s", esc(o.DriverPhone))
	}
	return text
}

func driverOrderText(o *models.Order) string {
	text := "🚖 <b>Вы приняли заказ!</b>\n\n" + route(o)
	if o.Comment != "" {
		text += fmt.Sprintf("\n💬 <b>Комментарий:</b> %s", esc(o.Comment))
	}
	if o.ClientPhone != "" {
		text += fmt.Sprintf("\n📞 <b>Телефон клиента:</b> %s", esc(o.ClientPhone))
	}
	return text + "\n\n" + orderFooter(o)
}

func driverCompletedText(o *models.Order) string {
	return fmt.Sprintf("✅ <b>Заказ %s завершён!</b>\n\nОжидайте новые заказы.", esc(o.ShortID()))
}

func driverCancelledText(o *models.Order) string {
	return fmt.Sprintf("❌ <b>Заказ %s отменён администратором</b>\n\nОжидайте новые заказы.", esc(o.ShortID()))
}

func driverWelcomeText(d *models.Driver) string {
	return fmt.Sprintf("🚕 Привет, %s!\n\nДобро пожаловать в команду водителей такси!\n\n"+
		"Для начала работы необходимо заполнить данные об автомобиле.\n\n%s",
		esc(d.DisplayName()), stepPrompts[models.StepCarBrand])
}

func continueRegistrationText(step models.RegistrationStep) string {
	return textContinueRegistration + stepPrompts[step]
}

func registrationDoneText(d *models.Driver) string {
	return fmt.Sprintf("✅ Регистрация завершена!\n\n🚗 Ваш автомобиль:\n• Марка: %s\n• Модель: %s\n• Цвет: %s\n• Гос. номер: %s\n\n"+
		"Теперь вы можете принимать заказы в группе водителей!",
		esc(d.CarBrand), esc(d.CarModel), esc(d.CarColor), esc(d.CarPlate))
}
