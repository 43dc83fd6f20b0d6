package utils

import "coachflow/models"

// SequenceEmailDef is one email in a static sequence definition. HTML bodies
// use {name}-style placeholders filled in at dispatch time.
type SequenceEmailDef struct {
	Subject      string
	Title        string
	HTMLBody     string
	CallToAction string
	DelayDays    int
}

// SequenceDef is a named, language-specific drip sequence definition
type SequenceDef struct {
	Name        string
	Description string
	Emails      []SequenceEmailDef
}

// Embedded sequence content, keyed by sequence type then language.
// Bulgarian falls back to English when a translation is missing.
var sequenceLibrary = map[string]map[string]SequenceDef{
	models.SourceLeadMagnet: {
		"en": {
			Name:        "Lead Magnet Nurture",
			Description: "Follow-up after the free guide download",
			Emails: []SequenceEmailDef{
				{
					Subject:      "Your guide is inside, {first_name}",
					Title:        "Here is your guide",
					HTMLBody:     `<p>Hi {name},</p><p>Thanks for downloading the guide — it's attached below. Set aside twenty minutes this week to go through the self-assessment in chapter one. Most people are surprised by what it surfaces.</p><p>I'll check in over the next couple of weeks with the ideas clients find most useful.</p>`,
					CallToAction: "Open the guide",
					DelayDays:    0,
				},
				{
					Subject:      "The mistake almost everyone makes",
					Title:        "One habit to drop this week",
					HTMLBody:     `<p>Hi {first_name},</p><p>Did you get a chance to try the self-assessment? The most common pattern I see in it is people optimizing their calendar before they've decided what actually matters. Busy is not the same as effective.</p><p>This week, try cancelling one recurring commitment that no longer earns its place.</p>`,
					CallToAction: "Read the full article",
					DelayDays:    2,
				},
				{
					Subject:      "How Maria doubled her team's output",
					Title:        "A client story",
					HTMLBody:     `<p>Hi {first_name},</p><p>Maria runs a twelve-person product team. When we started, she was in nine hours of meetings a day. Six months later her team ships twice as fast and she leaves at five.</p><p>The change wasn't a productivity tool. It was deciding, explicitly, which decisions only she could make — and delegating everything else with real authority.</p>`,
					CallToAction: "See more client stories",
					DelayDays:    5,
				},
				{
					Subject:      "A question for you, {first_name}",
					Title:        "What's actually in the way?",
					HTMLBody:     `<p>Hi {name},</p><p>Quick question: if you could remove one obstacle between you and the way you want to work, what would it be?</p><p>Hit reply and tell me. I read every answer, and it usually turns into the most useful conversation people have all month.</p>`,
					CallToAction: "Reply to this email",
					DelayDays:    9,
				},
				{
					Subject:      "Ready when you are",
					Title:        "Book a discovery call",
					HTMLBody:     `<p>Hi {first_name},</p><p>This is the last email in this series. If the guide resonated, the next step is a free thirty-minute discovery call — no pitch, just a working session on the obstacle you named.</p><p>If now isn't the time, no problem. You'll keep getting the monthly letter and you can book whenever it fits.</p>`,
					CallToAction: "Book your discovery call",
					DelayDays:    14,
				},
			},
		},
		"bg": {
			Name:        "Серия след безплатното ръководство",
			Description: "Последващи имейли след изтегляне на ръководството",
			Emails: []SequenceEmailDef{
				{
					Subject:      "Вашето ръководство е тук, {first_name}",
					Title:        "Ето вашето ръководство",
					HTMLBody:     `<p>Здравейте, {name},</p><p>Благодаря, че изтеглихте ръководството — ще го намерите по-долу. Отделете двадесет минути тази седмица за самооценката в първа глава. Повечето хора се изненадват от резултата.</p>`,
					CallToAction: "Отворете ръководството",
					DelayDays:    0,
				},
				{
					Subject:      "Грешката, която почти всички допускат",
					Title:        "Един навик, който да оставите",
					HTMLBody:     `<p>Здравейте, {first_name},</p><p>Най-честият модел, който виждам, е хора, които оптимизират календара си, преди да са решили кое всъщност е важно. Зает не значи ефективен.</p><p>Тази седмица опитайте да отмените един повтарящ се ангажимент, който вече не си заслужава мястото.</p>`,
					CallToAction: "Прочетете цялата статия",
					DelayDays:    2,
				},
				{
					Subject:      "Как Мария удвои резултатите на екипа си",
					Title:        "История на клиент",
					HTMLBody:     `<p>Здравейте, {first_name},</p><p>Мария ръководи екип от дванадесет души. Когато започнахме, тя прекарваше по девет часа на ден в срещи. Шест месеца по-късно екипът ѝ работи двойно по-бързо, а тя си тръгва в пет.</p>`,
					CallToAction: "Вижте още истории на клиенти",
					DelayDays:    5,
				},
				{
					Subject:      "Един въпрос към вас, {first_name}",
					Title:        "Какво всъщност ви пречи?",
					HTMLBody:     `<p>Здравейте, {name},</p><p>Кратък въпрос: ако можехте да премахнете едно препятствие между вас и начина, по който искате да работите, кое щеше да е то?</p><p>Отговорете на този имейл — чета всеки отговор.</p>`,
					CallToAction: "Отговорете на имейла",
					DelayDays:    9,
				},
				{
					Subject:      "Готови сме, когато и вие сте",
					Title:        "Запазете опознавателен разговор",
					HTMLBody:     `<p>Здравейте, {first_name},</p><p>Това е последният имейл от тази серия. Ако ръководството ви беше полезно, следващата стъпка е безплатен тридесетминутен разговор — без продажби, само работа по препятствието, което посочихте.</p>`,
					CallToAction: "Запазете разговор",
					DelayDays:    14,
				},
			},
		},
	},
	models.SourceWaitlist: {
		"en": {
			Name:        "Waitlist Welcome",
			Description: "Nurture for people waiting for the next group program",
			Emails: []SequenceEmailDef{
				{
					Subject:      "You're on the list, {first_name}",
					Title:        "Welcome to the waitlist",
					HTMLBody:     `<p>Hi {name},</p><p>You're officially on the waitlist for the next group program. Spots open roughly once a quarter, and waitlist members hear about them first — usually a week before the public.</p><p>Until then, I'll send you a few things worth reading.</p>`,
					CallToAction: "See the program outline",
					DelayDays:    0,
				},
				{
					Subject:      "What the program actually looks like",
					Title:        "Inside the program",
					HTMLBody:     `<p>Hi {first_name},</p><p>People often ask what the twelve weeks look like in practice: one group session a week, one individual session every other week, and a small peer pod that keeps you honest between sessions.</p><p>The pod is the part alumni say mattered most.</p>`,
					CallToAction: "Read alumni stories",
					DelayDays:    3,
				},
				{
					Subject:      "A taste of week one",
					Title:        "Try the week-one exercise",
					HTMLBody:     `<p>Hi {first_name},</p><p>Here's the exact exercise we start with in week one: write down the three decisions you're currently avoiding, and next to each, what it costs you per week to keep avoiding it.</p><p>Ten minutes. It reliably changes what people do the following Monday.</p>`,
					CallToAction: "Download the worksheet",
					DelayDays:    7,
				},
				{
					Subject:      "Doors open soon",
					Title:        "Enrollment is coming",
					HTMLBody:     `<p>Hi {name},</p><p>Enrollment for the next cohort opens shortly, and as promised you'll get first pick. If you already know you're in, reply to this email and I'll hold a spot.</p>`,
					CallToAction: "Reserve your spot",
					DelayDays:    14,
				},
			},
		},
		"bg": {
			Name:        "Добре дошли в списъка на чакащите",
			Description: "Серия за чакащите следващата групова програма",
			Emails: []SequenceEmailDef{
				{
					Subject:      "Вие сте в списъка, {first_name}",
					Title:        "Добре дошли",
					HTMLBody:     `<p>Здравейте, {name},</p><p>Официално сте в списъка на чакащите за следващата групова програма. Места се отварят приблизително веднъж на тримесечие и хората от списъка научават първи.</p>`,
					CallToAction: "Вижте програмата",
					DelayDays:    0,
				},
				{
					Subject:      "Как изглежда програмата отвътре",
					Title:        "Вътре в програмата",
					HTMLBody:     `<p>Здравейте, {first_name},</p><p>Дванадесетте седмици включват: една групова сесия седмично, една индивидуална сесия през седмица и малка група колеги, която ви държи отговорни между сесиите.</p>`,
					CallToAction: "Прочетете истории на завършили",
					DelayDays:    3,
				},
				{
					Subject:      "Упражнението от първата седмица",
					Title:        "Опитайте упражнението",
					HTMLBody:     `<p>Здравейте, {first_name},</p><p>Ето упражнението, с което започваме: запишете трите решения, които в момента отлагате, и до всяко — колко ви струва седмично това отлагане.</p><p>Десет минути. Надеждно променя какво правите следващия понеделник.</p>`,
					CallToAction: "Изтеглете работния лист",
					DelayDays:    7,
				},
				{
					Subject:      "Записването започва скоро",
					Title:        "Очаквайте записването",
					HTMLBody:     `<p>Здравейте, {name},</p><p>Записването за следващата група започва скоро и както обещахме, вие избирате първи. Ако вече знаете, че участвате, отговорете на този имейл и ще запазя място.</p>`,
					CallToAction: "Запазете мястото си",
					DelayDays:    14,
				},
			},
		},
	},
	models.SourceCorporate: {
		"en": {
			Name:        "Corporate Inquiry Follow-up",
			Description: "Follow-up for corporate training inquiries",
			Emails: []SequenceEmailDef{
				{
					Subject:      "Thanks for reaching out, {first_name}",
					Title:        "We got your inquiry",
					HTMLBody:     `<p>Hi {name},</p><p>Thanks for your inquiry about corporate programs. I'll review what you shared and come back within two business days with a first take on format and scope.</p><p>In the meantime, the attached one-pager covers the three workshop formats and typical outcomes.</p>`,
					CallToAction: "View the program one-pager",
					DelayDays:    0,
				},
				{
					Subject:      "How we'd approach your team",
					Title:        "A suggested starting point",
					HTMLBody:     `<p>Hi {first_name},</p><p>Most engagements start with a half-day diagnostic workshop: we map where decisions stall in your team and leave you with a concrete picture, whether or not we continue together.</p><p>Happy to set up a short call to see if that fits what you need.</p>`,
					CallToAction: "Schedule a scoping call",
					DelayDays:    2,
				},
				{
					Subject:      "Case study: leadership program at a 200-person company",
					Title:        "What results look like",
					HTMLBody:     `<p>Hi {first_name},</p><p>Sharing one case study that's close to what you described: a six-month leadership program for a 200-person company — manager retention up, decision latency measurably down.</p><p>If the timing isn't right this quarter, just say so and I'll follow up when it suits you.</p>`,
					CallToAction: "Read the case study",
					DelayDays:    6,
				},
			},
		},
		"bg": {
			Name:        "Последващи имейли за корпоративни запитвания",
			Description: "Серия след корпоративно запитване",
			Emails: []SequenceEmailDef{
				{
					Subject:      "Благодарим за запитването, {first_name}",
					Title:        "Получихме запитването ви",
					HTMLBody:     `<p>Здравейте, {name},</p><p>Благодаря за запитването относно корпоративните програми. Ще прегледам споделеното и ще се върна до два работни дни с първоначално предложение за формат и обхват.</p>`,
					CallToAction: "Вижте резюмето на програмите",
					DelayDays:    0,
				},
				{
					Subject:      "Как бихме подходили към вашия екип",
					Title:        "Предложена начална точка",
					HTMLBody:     `<p>Здравейте, {first_name},</p><p>Повечето ангажименти започват с диагностичен уъркшоп от половин ден: картографираме къде засядат решенията във вашия екип и ви оставяме конкретна картина.</p>`,
					CallToAction: "Насрочете разговор",
					DelayDays:    2,
				},
				{
					Subject:      "Казус: лидерска програма в компания с 200 души",
					Title:        "Как изглеждат резултатите",
					HTMLBody:     `<p>Здравейте, {first_name},</p><p>Споделям казус, близък до описаното от вас: шестмесечна лидерска програма за компания с 200 служители — по-високо задържане на мениджъри и измеримо по-бързи решения.</p>`,
					CallToAction: "Прочетете казуса",
					DelayDays:    6,
				},
			},
		},
	},
}

// SequenceDefinition returns the static definition for a sequence type and
// language. Unknown languages fall back to English; unknown types return
// ok=false.
func SequenceDefinition(sequenceType, language string) (SequenceDef, bool) {
	byLang, ok := sequenceLibrary[sequenceType]
	if !ok {
		return SequenceDef{}, false
	}
	def, ok := byLang[language]
	if !ok {
		def, ok = byLang["en"]
	}
	return def, ok
}

// SequenceTypes lists the known sequence types
func SequenceTypes() []string {
	return []string{models.SourceLeadMagnet, models.SourceWaitlist, models.SourceCorporate}
}
