package server

// testPageHTML is a minimal browser client. Server text is already escaped,
// and the page still inserts it with textContent.
const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>GoChat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .time { font-size: 0.8em; color: gray; }
        .notice { color: #721c24; }
    </style>
</head>
<body>
    <h1>GoChat</h1>
    <div>Online: <span id="online-count">0</span></div>
    <div id="messages"></div>
    <form id="chat-form">
        <input type="text" id="message-input" placeholder="Type a message..." autocomplete="off">
        <button type="submit">Send</button>
    </form>

    <script>
        const messagesDiv = document.getElementById('messages');
        const onlineCount = document.getElementById('online-count');
        const input = document.getElementById('message-input');
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/ws');

        function decode(text) {
            const el = document.createElement('textarea');
            el.innerHTML = text;
            return el.value;
        }

        function addLine(author, text, time) {
            const line = document.createElement('div');
            const who = document.createElement('strong');
            who.textContent = decode(author) + ': ';
            const body = document.createElement('span');
            body.textContent = decode(text) + ' ';
            const when = document.createElement('span');
            when.className = 'time';
            when.textContent = '[' + time + ']';
            line.append(who, body, when);
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function addNotice(text) {
            const line = document.createElement('div');
            line.className = 'notice';
            line.textContent = text;
            messagesDiv.appendChild(line);
        }

        ws.onopen = function() {
            const name = prompt('Enter your name:') || '';
            ws.send(JSON.stringify({type: 'set-name', name: name}));
        };

        ws.onmessage = function(event) {
            const evt = JSON.parse(event.data);
            switch (evt.type) {
            case 'history':
                (evt.history || []).forEach(m => addLine(m.author, m.text, m.time));
                break;
            case 'presence-update':
                onlineCount.textContent = (evt.users || []).length;
                break;
            case 'message':
                addLine(evt.message.author, evt.message.text, evt.message.time);
                break;
            case 'capacity-notice':
                addNotice(evt.notice);
                break;
            }
        };

        ws.onclose = function() { addNotice('Connection closed'); };

        document.getElementById('chat-form').addEventListener('submit', function(e) {
            e.preventDefault();
            const text = input.value.trim();
            if (text && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'send-message', text: text}));
                input.value = '';
            }
        });
    </script>
</body>
</html>`
