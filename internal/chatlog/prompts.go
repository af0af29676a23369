package chatlog

// SystemPrompt instructs the model to emit nothing but `id content | id content | ...`.
const SystemPrompt = `你是一个专业造屎专家，致力于通过聊天记录构造，来描写一些搞笑或者猎奇的事。
你需要输出的聊天记录的格式为严格的：
用户ID 用户说的话 | 用户ID 用户说的话 | 用户ID 用户说的话 | ...
其中用户ID是QQ号，是一串数字。每个发言之间用 | 符号分隔。
不要输出任何其他内容，只输出聊天记录。不要加任何解释。`

// UserPrompt asks for a story-like, absurd chat log with 7-10 digit QQ ids.
const UserPrompt = `请严格依据格式要求，生成一段搞笑/猎奇/让人无语的屎聊天记录，要贴合生活实际以及网络上的热梗。
每个发言的格式是"QQ号 消息内容"，不同发言之间用"|"分隔。
QQ号应该是7-10位的数字。
请确保生成的聊天记录有故事性和趣味性，能引起读者的兴趣，而且要形成一件完整的事件或者故事。
请直接输出格式正确的聊天记录，不要有任何其他说明性文字。`
