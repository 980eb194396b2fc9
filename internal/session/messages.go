package session

import "fmt"

const (
	messageSessionMissingButton = "このセッションは存在しないか期限切れです。最初からやり直してください。"
	messageSessionMissing       = "セッションが存在しないか期限切れです。"
	messageUnsupported          = "その操作にはまだ対応していません。"
	messageNotYourConfirmation  = "この確認はあなた宛てではありません。"

	messageEditionPrompt      = "ゲームエディションを選択してください。"
	messageEditionPlaceholder = "ゲームエディションを選択してください"
	messageCancelled          = "申請をキャンセルしました。"
	messageChecking           = "申請内容を確認中…"
	messageAnalyzing          = "申請内容のAI解析中…"
	messageValidationTimeout  = "⏳ 60秒間応答がなかったため、処理をタイムアウトで中断しました。再度申請してください。"
	messageAwaitingJoiners    = "申請を受け付けました。しばらくお待ち下さい"
	messageJoinerThanks       = "回答ありがとうございました。"
	messageIdleTimeout        = "⏳ 一定時間操作がなかったため、申請セッションを終了しました。再度申請してください。"
	messageUnexpectedError    = "エラーが発生しました。"

	errorTitle = "エラー"

	formTitle = "一時入国審査申請フォーム"

	introTitle       = "自動入国審査システムです。"
	introDescription = "こちらのチケットでは、旅行、取引、労働等を行うために一時的に入国を希望される方に対し、許可証を自動で発行しております。\n" +
		"審査は24時間365日いつでも受けられ、最短数分で許可証が発行されます。\n" +
		"以下の留意事項をよくお読みの上、次に進む場合は「進む」、申請を希望しない場合は「終了」をクリックしてください。"
	introNotes = "・入国が承認されている期間中、申告内容に誤りがあることが判明したり、[コムザール連邦共和国の明示する法令](https://comzer-gov.net/laws/) に違反した場合は承認が取り消されることがあります。\n" +
		"・法令の不知は理由に抗弁できません。\n" +
		"・損害を与えた場合、行政省庁は相当の対応を行う可能性があります。\n" +
		"・入国情報は適切な範囲で国民に共有されます。"

	approvalTitle       = "一時入国審査結果"
	approvalDescription = "自動入国審査システムです。上記の通り申請されました\"__**一時入国審査**__\"について、審査が完了いたしましたので、以下の通り通知いたします。\n\n" +
		"> 審査結果：**承認**"
	approvalNotes = "・在留期間の延長が予定される場合、速やかににこのチャンネルでお知らせください。但し、合計在留期間が31日を超える場合、新規に申請が必要です。\n" +
		"・入国が承認されている期間中、申請内容に誤りがあることが判明したり、異なる行為をした場合、又は、コムザール連邦共和国の法令に違反したり、行政省庁の指示に従わなかった場合は、**承認が取り消される**場合があります。\n" +
		"・入国中、あなたは[コムザール連邦共和国の明示する法令](https://comzer-gov.net/laws/) を理解したものと解釈され、これの不知を理由に抗弁することはできません。\n" +
		"・あなたがコムザール連邦共和国及び国民に対して損害を生じさせた場合、行政省庁は、あなたが在籍する国家に対して、相当の対応を行う可能性があります。\n" +
		"・あなたの入国関連情報は、その期間中、公表が不適切と判断される情報を除外した上で、コムザール連邦共和国国民に対して自動的に共有されます。\n\n" +
		"コムザール連邦共和国へようこそ。"
	notesFieldName = "【留意事項】"

	publicationTitle       = "【一時入国審査に係る入国者の公示】"
	publicationDescription = "以下の外国籍プレイヤーの入国が承認された為、以下の通り公示いたします。(外務省入管部)"

	rejectionTitle  = "一時入国審査【却下】"
	rejectionFooter = "再申請の際は内容をよくご確認ください。"

	adminReportTitle      = "管理レポート"
	adminReportOpenFields = "未完了セッション数"

	valueNone    = "なし"
	valueUnknown = "不明"

	colorApproval    = 0x3498db
	colorPublication = 0x27ae60
	colorRejection   = 0xe74c3c
)

// Rejection reasons shown to the applicant.
const (
	reasonParseFailed          = "申請内容の解析に失敗しました。もう一度ご入力ください。"
	reasonNationBlacklisted    = "申請された国籍は安全保障上の理由から入国を許可することができないため、却下します。"
	reasonPlayerBlacklisted    = "申請されたMCIDは安全保障上の理由から入国を許可することができないため、却下します。"
	reasonBlacklistUnavailable = "ブラックリストの照会に失敗したため、審査を完了できませんでした。時間をおいて再度申請してください。"
	reasonJoinerTransport      = "合流者チェックの通信に失敗しました。ネットワークをご確認ください。"
	reasonStayTooLong          = "申請期間が長すぎるため却下します（申請期間が31日を超える場合、31日で申請後、申請が切れる前に再審査をお願いいたします。）"
	reasonMissingFields        = "申請情報に不足があります。全項目を入力してください。"
	reasonPipelineError        = "審査中にエラーが発生しました。"
	reasonJoinerDeclined       = "合流者が申請を承認しませんでした。合流者は正しいですか？"
	reasonJoinerUnreachable    = "合流者への確認通知を送信できませんでした。合流者は正しいですか？"
	reasonJoinerExpired        = "合流者からの回答が期限内に得られなかったため、却下します。再度申請してください。"
)

func reasonApplicantNotFound(mcid string) string {
	return fmt.Sprintf("申請者MCID「%s」のアカウントチェックが出来ませんでした。綴りにお間違いはございませんか？", mcid)
}

func reasonCompanionBlacklisted(mcid string) string {
	return fmt.Sprintf("同行者「%s」は安全保障上の理由から入国を許可することができないため。", mcid)
}

func reasonCompanionNotFound(mcid string) string {
	return fmt.Sprintf("同行者MCID「%s」のアカウントチェックが出来ませんでした。綴りにお間違いはございませんか？。", mcid)
}

func reasonCompanionNationMismatch(mcid string) string {
	return fmt.Sprintf("同行者「%s」は申請者と国籍が異なるため承認できません。国籍が異なる場合、それぞれご申告ください。", mcid)
}

func reasonJoinerServerError(status int) string {
	return fmt.Sprintf("サーバーエラー(%d)が発生しました。", status)
}

func joinerDMContent(mcid string) string {
	return fmt.Sprintf("外務省入管局からの確認通知です。申請者 %s さんからあなたが国内で合流するユーザーである旨の申請がありました。この申請はお間違えございませんか？(心当たりがない場合は、「いいえ」をご選択ください。)", mcid)
}

func transcriptContent(sessionID string, status Status) string {
	return fmt.Sprintf("セッション %s が %s しました。詳細ログを添付します。", sessionID, status)
}

func transcriptFilename(channelName string) string {
	return fmt.Sprintf("%s-一時入国審査.txt", channelName)
}
